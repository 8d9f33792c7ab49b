// Copyright 2019 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package resourcemgr

import (
	"fmt"
	"testing"
)

func TestRCAddsResourceManagerErrorLevel(t *testing.T) {
	got := RC(0x00000001)
	want := resmgrErrorLevel | 0x00000001
	if got != want {
		t.Errorf("RC(1) = 0x%08x, want 0x%08x", uint32(got), uint32(want))
	}
}

func TestPredicateHelpers(t *testing.T) {
	conn := NewConnection(1)

	cases := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"quota exceeded matches IsQuotaExceeded", &QuotaExceededError{Connection: conn, Command: CommandCreatePrimary}, IsQuotaExceeded, true},
		{"quota exceeded does not match IsBrokerFailure", &QuotaExceededError{Connection: conn, Command: CommandCreatePrimary}, IsBrokerFailure, false},
		{"context load failure matches IsContextLoadFailure", &ContextLoadError{Handle: vhandleBase, RC: RCGeneralFailure}, IsContextLoadFailure, true},
		{"broker error matches IsBrokerFailure", &BrokerError{Command: CommandLoad, RC: RCGeneralFailure}, IsBrokerFailure, true},
		{"wrapped broker error still matches IsBrokerFailure", fmt.Errorf("wrapped: %w", &BrokerError{Command: CommandLoad, RC: RCGeneralFailure}), IsBrokerFailure, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.check(tc.err); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFlushUnknownHandleErrorMessage(t *testing.T) {
	err := &FlushUnknownHandleError{Handle: vhandleBase}
	if err.Error() == "" {
		t.Error("expected a non-empty error message")
	}
}

func TestCommandCodeIsObjectCreating(t *testing.T) {
	creating := []CommandCode{CommandCreatePrimary, CommandLoad, CommandLoadExternal}
	for _, cc := range creating {
		if !cc.isObjectCreating() {
			t.Errorf("%s should be object-creating", cc)
		}
	}
	if CommandFlushContext.isObjectCreating() {
		t.Errorf("%s should not be object-creating", CommandFlushContext)
	}
}
