package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/formcoach/internal/models"
)

// guideEntry is one exercise in the exercise_guide resource.
type guideEntry struct {
	Exercise     models.ExerciseType `json:"exercise"`
	Title        string              `json:"title"`
	Instructions []string            `json:"instructions"`
	ExpertVideo  string              `json:"expert_video"`
	LivePath     string              `json:"live_path"`
	UploadPath   string              `json:"upload_path"`
}

func (h *handlers) exerciseGuide(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	var guide []guideEntry
	for _, e := range models.ExerciseTypes {
		c := e.Content()
		guide = append(guide, guideEntry{
			Exercise:     e,
			Title:        c.Title,
			Instructions: c.Instructions,
			ExpertVideo:  c.ExpertVideo,
			LivePath:     "/exercises/" + string(e) + "/" + string(models.Live),
			UploadPath:   "/exercises/" + string(e) + "/" + string(models.Upload),
		})
	}
	return jsonResource(req.Params.URI, guide)
}

func (h *handlers) modes(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonResource(req.Params.URI, h.backend.ListModes(ctx))
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
