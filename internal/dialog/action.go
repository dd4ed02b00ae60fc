package dialog

import "fmt"

// Action is a typed button press. Transports carry actions as flat
// key-value payloads; DecodeAction turns a payload back into the concrete
// type so handlers never branch on raw strings.
type Action interface {
	// Encode renders the action as a transport payload.
	Encode() map[string]string
}

// StartAction begins a dialog of the given kind.
type StartAction struct {
	Kind Kind
}

func (a StartAction) Encode() map[string]string {
	return map[string]string{"flow": string(a.Kind), "step": "start"}
}

// CancelAction aborts the active dialog of the given kind. Nothing is
// persisted.
type CancelAction struct {
	Kind Kind
}

func (a CancelAction) Encode() map[string]string {
	return map[string]string{"flow": string(a.Kind), "step": "cancel"}
}

// ChoiceAction answers a button prompt inside a running dialog, for
// example the claim yes/no question or a category pick.
type ChoiceAction struct {
	Kind  Kind
	Step  Step
	Value string
}

func (a ChoiceAction) Encode() map[string]string {
	return map[string]string{"flow": string(a.Kind), "step": string(a.Step), "value": a.Value}
}

// ConfirmAction resolves a pending AI-proposed operation by its id.
type ConfirmAction struct {
	ActionID string
	Approve  bool
}

func (a ConfirmAction) Encode() map[string]string {
	step := "confirm"
	if !a.Approve {
		step = "reject"
	}
	return map[string]string{"flow": string(KindAIConfirm), "step": step, "id": a.ActionID}
}

// EditFieldAction opens an edit dialog for one field of a stored
// transaction.
type EditFieldAction struct {
	TxID  string
	Field string
}

func (a EditFieldAction) Encode() map[string]string {
	return map[string]string{"flow": string(KindEditTx), "step": "start", "tx": a.TxID, "field": a.Field}
}

// DecodeAction parses a transport payload into a typed action. Unknown or
// malformed payloads return an error so callers can answer with a visible
// failure instead of silently dropping the press.
func DecodeAction(data map[string]string) (Action, error) {
	flow := Kind(data["flow"])
	step := data["step"]

	switch flow {
	case KindAddTx, KindAddNote, KindAddReminder, KindAdmin:
		switch step {
		case "start":
			return StartAction{Kind: flow}, nil
		case "cancel":
			return CancelAction{Kind: flow}, nil
		}
		if flow == KindAddTx {
			switch Step(step) {
			case StepClaimAsk, StepCategory, StepNote:
				return ChoiceAction{Kind: flow, Step: Step(step), Value: data["value"]}, nil
			}
		}
	case KindEditTx:
		switch step {
		case "start":
			if data["tx"] == "" || data["field"] == "" {
				return nil, fmt.Errorf("dialog.DecodeAction: edit action missing tx or field")
			}
			return EditFieldAction{TxID: data["tx"], Field: data["field"]}, nil
		case "cancel":
			return CancelAction{Kind: flow}, nil
		}
	case KindAIConfirm:
		if data["id"] == "" {
			return nil, fmt.Errorf("dialog.DecodeAction: confirm action missing id")
		}
		switch step {
		case "confirm":
			return ConfirmAction{ActionID: data["id"], Approve: true}, nil
		case "reject", "cancel":
			return ConfirmAction{ActionID: data["id"], Approve: false}, nil
		}
	}
	return nil, fmt.Errorf("dialog.DecodeAction: unknown action flow=%q step=%q", data["flow"], step)
}
