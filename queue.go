// Copyright 2019 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package resourcemgr

// queueMessage is the tagged union carried on the dispatcher's input queue:
// either a command to run through the pipeline, or a control message. A nil
// cmd means the message is a control message.
type queueMessage struct {
	cmd     *Tpm2Command
	control controlCode
}

func commandMessage(cmd *Tpm2Command) queueMessage {
	return queueMessage{cmd: cmd}
}

func controlMessage(c controlCode) queueMessage {
	return queueMessage{control: c}
}

func (m queueMessage) isControl() bool {
	return m.cmd == nil
}
