package detection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// ErrNoJSON is returned when no JSON object can be recovered from the model
// response.
var ErrNoJSON = errors.New("no valid JSON found in model response")

// Person is a single normalized detection. Confidences are on a 0-1 scale,
// boxes use the model's [ymin,xmin,ymax,xmax] coordinates in 0-1000.
type Person struct {
	PersonID         int         `json:"personId"`
	PersonConfidence float64     `json:"personConfidence"`
	HelmetConfidence float64     `json:"helmetConfidence"`
	HasHelmet        bool        `json:"hasHelmet"`
	PersonBox        [4]float64  `json:"personBox"`
	HelmetBox        *[4]float64 `json:"helmetBox"`
}

const detectionPrompt = `Detect every person in this construction site photo. Respond with a single JSON object, no prose, in the form:
{"persons":[{"personId":0,"personConfidence":95,"hasHelmet":true,"helmetConfidence":90,"personBox":[ymin,xmin,ymax,xmax],"helmetBox":[ymin,xmin,ymax,xmax]}]}
Rules: personId is a zero-based index. Confidences are 0-100. Bounding boxes use normalized coordinates in the 0-1000 range. helmetBox must be null when the person wears no helmet. Return {"persons":[]} if no people are visible.`

type chatFunc func(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error

// Client asks an external vision model to enumerate people and helmet usage
// in a single image. The underlying API handle is provided at construction,
// there is no package-level state.
type Client struct {
	chat    chatFunc
	model   string
	timeout time.Duration
}

// NewClient builds a detection client talking to an Ollama-compatible server.
func NewClient(serverURL, model string, timeout time.Duration) (*Client, error) {
	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid detection server URL: %w", err)
	}

	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}
	apiClient := api.NewClient(baseURL, http.DefaultClient)

	return &Client{chat: apiClient.Chat, model: model, timeout: timeout}, nil
}

// Detect sends one image to the vision model and returns the normalized
// detections at or above the caller's helmet confidence threshold semantics.
// Any network, model, or parse failure degrades to an empty list; detection
// problems never abort the caller's batch.
func (c *Client) Detect(ctx context.Context, img []byte, mediaType, name string, threshold float64) []Person {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: detectionPrompt,
				Images:  []api.ImageData{api.ImageData(img)},
			},
		},
		Stream: &streamFalse,
	}

	var responseContent string
	err := c.chat(ctx, req, func(resp api.ChatResponse) error {
		responseContent = resp.Message.Content
		return nil
	})
	if err != nil {
		log.Printf("detection: model call failed for %s (%s): %v", name, mediaType, err)
		return []Person{}
	}

	persons, err := parsePersons(responseContent)
	if err != nil {
		log.Printf("detection: unusable model response for %s: %v", name, err)
		return []Person{}
	}

	return applyThreshold(persons, threshold)
}

// wire format of the model response, confidences still on the 0-100 scale
type wirePerson struct {
	PersonID         int       `json:"personId"`
	PersonConfidence float64   `json:"personConfidence"`
	HelmetConfidence float64   `json:"helmetConfidence"`
	HasHelmet        bool      `json:"hasHelmet"`
	PersonBox        []float64 `json:"personBox"`
	HelmetBox        []float64 `json:"helmetBox"`
}

type wireResponse struct {
	Persons []wirePerson `json:"persons"`
}

// parsePersons recovers the JSON object from a possibly fenced model answer
// and normalizes confidences to the 0-1 range.
func parsePersons(raw string) ([]Person, error) {
	extracted, err := extractJSONObject(raw)
	if err != nil {
		return nil, err
	}

	var resp wireResponse
	if err := json.Unmarshal([]byte(extracted), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse model JSON: %w", err)
	}

	persons := make([]Person, 0, len(resp.Persons))
	for _, wp := range resp.Persons {
		box, ok := toBox(wp.PersonBox)
		if !ok {
			log.Printf("detection: dropping person %d with malformed person box %v", wp.PersonID, wp.PersonBox)
			continue
		}
		p := Person{
			PersonID:         wp.PersonID,
			PersonConfidence: rescaleConfidence(wp.PersonConfidence),
			HelmetConfidence: rescaleConfidence(wp.HelmetConfidence),
			HasHelmet:        wp.HasHelmet,
			PersonBox:        box,
		}
		if helmetBox, ok := toBox(wp.HelmetBox); ok {
			p.HelmetBox = &helmetBox
		}
		persons = append(persons, p)
	}
	return persons, nil
}

// extractJSONObject strips code fences and slices the outermost {...} from a
// model answer. Models frequently wrap their JSON in markdown fences.
func extractJSONObject(raw string) (string, error) {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", ErrNoJSON
	}
	return raw[start : end+1], nil
}

// rescaleConfidence maps the model's 0-100 confidence onto 0-1 and clamps it.
func rescaleConfidence(v float64) float64 {
	scaled := v / 100.0
	if scaled < 0 {
		return 0
	}
	if scaled > 1 {
		return 1
	}
	return scaled
}

func toBox(coords []float64) ([4]float64, bool) {
	if len(coords) != 4 {
		return [4]float64{}, false
	}
	var box [4]float64
	copy(box[:], coords)
	return box, true
}

// applyThreshold reinterprets the model's helmet verdict: a positive verdict
// whose helmet confidence falls below the threshold is downgraded to "no
// helmet" and loses its helmet box. A negative verdict is never upgraded.
func applyThreshold(persons []Person, threshold float64) []Person {
	out := make([]Person, 0, len(persons))
	for _, p := range persons {
		if p.HasHelmet && p.HelmetConfidence < threshold {
			p.HasHelmet = false
			p.HelmetBox = nil
		}
		if !p.HasHelmet {
			p.HelmetBox = nil
		}
		out = append(out, p)
	}
	return out
}
