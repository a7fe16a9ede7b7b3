package imageedit

import (
	"context"

	"roomviz/internal/providers/genai"
)

// Reference is one swatch or model image attached to an edit call.
type Reference struct {
	Name string
	Data []byte
}

// Request is a single editing pass over one input frame.
type Request struct {
	Prompt        string
	Model         string
	InputFidelity string
	Input         []byte
	References    []Reference
	RequestID     string
}

// Edited is the produced frame.
type Edited struct {
	Data   []byte
	Format string
}

// Editor is the seam the generation pipeline renders through. Implemented by
// the genai-backed editor in production and by fakes in tests.
type Editor interface {
	Edit(ctx context.Context, req Request) (*Edited, error)
}

// GenAIEditor adapts the genai client to the Editor seam.
type GenAIEditor struct {
	client *genai.Client
}

func NewGenAIEditor(client *genai.Client) *GenAIEditor {
	return &GenAIEditor{client: client}
}

func (e *GenAIEditor) Edit(ctx context.Context, req Request) (*Edited, error) {
	refs := make([]genai.Attachment, 0, len(req.References))
	for _, ref := range req.References {
		refs = append(refs, genai.Attachment{Name: ref.Name, Data: ref.Data})
	}
	edited, err := e.client.EditImage(ctx, genai.EditRequest{
		Prompt:        req.Prompt,
		Model:         req.Model,
		InputFidelity: req.InputFidelity,
		Base:          genai.Attachment{Name: "room.png", Data: req.Input},
		References:    refs,
		RequestID:     req.RequestID,
	})
	if err != nil {
		return nil, err
	}
	return &Edited{Data: edited.Data, Format: edited.Format}, nil
}

var _ Editor = (*GenAIEditor)(nil)
