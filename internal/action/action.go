// Package action executes the side effects attached to trust rules.
package action

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type Type string

const (
	TypeAnchor         Type = "anchor"
	TypeWebhook        Type = "webhook"
	TypePluginEmit     Type = "plugin_emit"
	TypeLedgerAllocate Type = "ledger_allocate"
)

// Action is one of *AnchorAction, *WebhookAction, *PluginEmitAction, *LedgerAllocateAction
// or *UnknownAction.
type Action interface {
	Type() Type
	isAction()
}

type AnchorAction struct {
	// EventHash is either a precomputed hash string or an object hashed canonically.
	EventHash interface{} `json:"eventHash"`
}

type EnvelopeKind string

const (
	EnvelopeNone EnvelopeKind = ""
	// EnvelopeObfuscation base64-encodes the payload. It provides no confidentiality.
	EnvelopeObfuscation EnvelopeKind = "obfuscation"
	EnvelopeAEAD        EnvelopeKind = "aead"
)

type LegacyEncryption struct {
	Enabled bool `json:"enabled"`
}

type WebhookAction struct {
	URL      string            `json:"url"`
	Payload  interface{}       `json:"payload,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	Envelope EnvelopeKind      `json:"envelope,omitempty"`
	// Encryption is the legacy switch for the obfuscation envelope.
	Encryption *LegacyEncryption `json:"encryption,omitempty"`
}

func (a *WebhookAction) EnvelopeKind() EnvelopeKind {
	if a.Envelope != EnvelopeNone {
		return a.Envelope
	}
	if a.Encryption != nil && a.Encryption.Enabled {
		return EnvelopeObfuscation
	}
	return EnvelopeNone
}

type PluginEmitAction struct {
	PluginID  string                 `json:"pluginId"`
	EventType string                 `json:"eventType"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

type AllocationSpec struct {
	Bucket  string  `json:"bucket"`
	Percent float64 `json:"percent"`
}

type LedgerAllocateAction struct {
	LedgerEventID string           `json:"ledgerEventId"`
	Allocations   []AllocationSpec `json:"allocations"`
}

// UnknownAction keeps an unrecognised descriptor so that it can be stored and reported.
type UnknownAction struct {
	TypeName string
	Raw      map[string]interface{}
}

func (*AnchorAction) Type() Type         { return TypeAnchor }
func (*WebhookAction) Type() Type        { return TypeWebhook }
func (*PluginEmitAction) Type() Type     { return TypePluginEmit }
func (*LedgerAllocateAction) Type() Type { return TypeLedgerAllocate }
func (a *UnknownAction) Type() Type      { return Type(a.TypeName) }

func (*AnchorAction) isAction()         {}
func (*WebhookAction) isAction()        {}
func (*PluginEmitAction) isAction()     {}
func (*LedgerAllocateAction) isAction() {}
func (*UnknownAction) isAction()        {}

func (a *AnchorAction) MarshalJSON() ([]byte, error) {
	type alias AnchorAction
	return marshalWithType(TypeAnchor, (*alias)(a))
}

func (a *WebhookAction) MarshalJSON() ([]byte, error) {
	type alias WebhookAction
	return marshalWithType(TypeWebhook, (*alias)(a))
}

func (a *PluginEmitAction) MarshalJSON() ([]byte, error) {
	type alias PluginEmitAction
	return marshalWithType(TypePluginEmit, (*alias)(a))
}

func (a *LedgerAllocateAction) MarshalJSON() ([]byte, error) {
	type alias LedgerAllocateAction
	return marshalWithType(TypeLedgerAllocate, (*alias)(a))
}

func (a *UnknownAction) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(a.Raw)+1)
	for k, v := range a.Raw {
		out[k] = v
	}
	out["type"] = a.TypeName
	return json.Marshal(out)
}

func marshalWithType(t Type, v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	fields["type"] = t
	return json.Marshal(fields)
}

// Parse decodes a single action descriptor.
func Parse(data []byte) (Action, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("invalid action JSON: %w", err)
	}

	var target Action
	switch Type(head.Type) {
	case TypeAnchor:
		target = &AnchorAction{}
	case TypeWebhook:
		target = &WebhookAction{}
	case TypePluginEmit:
		target = &PluginEmitAction{}
	case TypeLedgerAllocate:
		target = &LedgerAllocateAction{}
	default:
		raw := map[string]interface{}{}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid action JSON: %w", err)
		}
		delete(raw, "type")
		return &UnknownAction{TypeName: head.Type, Raw: raw}, nil
	}

	if err := json.Unmarshal(data, target); err != nil {
		return nil, fmt.Errorf("invalid %s action: %w", head.Type, err)
	}
	return target, nil
}

// List is the action set of a rule. It decodes from a single descriptor or an array.
type List []Action

func (l List) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Action(l))
}

func (l *List) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*l = nil
		return nil
	}

	var raws []json.RawMessage
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &raws); err != nil {
			return fmt.Errorf("invalid action list: %w", err)
		}
	} else {
		raws = []json.RawMessage{json.RawMessage(data)}
	}

	actions := make(List, 0, len(raws))
	for i, raw := range raws {
		a, err := Parse(raw)
		if err != nil {
			return fmt.Errorf("action[%d]: %w", i, err)
		}
		actions = append(actions, a)
	}
	*l = actions
	return nil
}

func (l *List) UnmarshalYAML(node *yaml.Node) error {
	var raw interface{}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("invalid action document: %w", err)
	}
	return l.UnmarshalJSON(data)
}
