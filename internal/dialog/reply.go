package dialog

// Button is an inline choice attached to a reply. Data is the encoded
// action payload the transport sends back on press.
type Button struct {
	Label string            `json:"label"`
	Data  map[string]string `json:"data"`
}

// Reply is a channel-agnostic outgoing message. Transports render Buttons
// as inline keyboards or JSON, as fits the channel.
type Reply struct {
	Text    string   `json:"text"`
	Buttons []Button `json:"buttons,omitempty"`
}

func button(label string, a Action) Button {
	return Button{Label: label, Data: a.Encode()}
}

func cancelButton(kind Kind) Button {
	return button("取消", CancelAction{Kind: kind})
}
