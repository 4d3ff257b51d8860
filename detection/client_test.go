package detection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clientWithResponse(content string, callErr error) *Client {
	return &Client{
		model:   "test-model",
		timeout: time.Second,
		chat: func(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error {
			if callErr != nil {
				return callErr
			}
			return fn(api.ChatResponse{Message: api.Message{Role: "assistant", Content: content}})
		},
	}
}

const sampleResponse = `{"persons":[
	{"personId":0,"personConfidence":95,"hasHelmet":true,"helmetConfidence":90,"personBox":[100,100,500,400],"helmetBox":[100,150,200,350]},
	{"personId":1,"personConfidence":80,"hasHelmet":false,"helmetConfidence":10,"personBox":[200,600,700,900],"helmetBox":null}
]}`

func TestDetectNormalizesConfidences(t *testing.T) {
	c := clientWithResponse(sampleResponse, nil)
	people := c.Detect(context.Background(), []byte("img"), "image/jpeg", "a.jpg", 0.5)

	require.Len(t, people, 2)
	assert.Equal(t, 0.95, people[0].PersonConfidence)
	assert.Equal(t, 0.9, people[0].HelmetConfidence)
	assert.True(t, people[0].HasHelmet)
	require.NotNil(t, people[0].HelmetBox)
	assert.Equal(t, [4]float64{100, 150, 200, 350}, *people[0].HelmetBox)

	assert.False(t, people[1].HasHelmet)
	assert.Nil(t, people[1].HelmetBox)
}

func TestDetectThresholdDowngradesVerdict(t *testing.T) {
	response := `{"persons":[{"personId":0,"personConfidence":95,"hasHelmet":true,"helmetConfidence":70,"personBox":[0,0,100,100],"helmetBox":[0,0,50,50]}]}`
	c := clientWithResponse(response, nil)

	people := c.Detect(context.Background(), []byte("img"), "image/jpeg", "a.jpg", 0.8)
	require.Len(t, people, 1)
	assert.False(t, people[0].HasHelmet)
	assert.Nil(t, people[0].HelmetBox)
	// the rescaled confidence itself is preserved
	assert.Equal(t, 0.7, people[0].HelmetConfidence)
}

func TestDetectThresholdNeverUpgrades(t *testing.T) {
	response := `{"persons":[{"personId":0,"personConfidence":95,"hasHelmet":false,"helmetConfidence":99,"personBox":[0,0,100,100],"helmetBox":[0,0,50,50]}]}`
	c := clientWithResponse(response, nil)

	people := c.Detect(context.Background(), []byte("img"), "image/jpeg", "a.jpg", 0.1)
	require.Len(t, people, 1)
	assert.False(t, people[0].HasHelmet)
	assert.Nil(t, people[0].HelmetBox)
}

func TestDetectHandlesFencedResponse(t *testing.T) {
	fenced := "```json\n" + sampleResponse + "\n```"
	c := clientWithResponse(fenced, nil)

	people := c.Detect(context.Background(), []byte("img"), "image/jpeg", "a.jpg", 0.5)
	assert.Len(t, people, 2)
}

func TestDetectUnparseableResponseReturnsEmpty(t *testing.T) {
	for _, content := range []string{"", "I see two workers.", "```\nnot json\n```", "{persons: broken"} {
		c := clientWithResponse(content, nil)
		people := c.Detect(context.Background(), []byte("img"), "image/jpeg", "a.jpg", 0.5)
		require.NotNil(t, people, "content=%q", content)
		assert.Empty(t, people, "content=%q", content)
	}
}

func TestDetectCallFailureReturnsEmpty(t *testing.T) {
	c := clientWithResponse("", errors.New("connection refused"))
	people := c.Detect(context.Background(), []byte("img"), "image/jpeg", "a.jpg", 0.5)
	require.NotNil(t, people)
	assert.Empty(t, people)
}

func TestParsePersonsDropsMalformedBoxes(t *testing.T) {
	response := `{"persons":[
		{"personId":0,"personConfidence":90,"hasHelmet":true,"helmetConfidence":90,"personBox":[1,2,3],"helmetBox":null},
		{"personId":1,"personConfidence":90,"hasHelmet":true,"helmetConfidence":90,"personBox":[1,2,3,4],"helmetBox":[1,2]}
	]}`
	people, err := parsePersons(response)
	require.NoError(t, err)
	require.Len(t, people, 1)
	assert.Equal(t, 1, people[0].PersonID)
	assert.Nil(t, people[0].HelmetBox)
}

func TestExtractJSONObjectErrors(t *testing.T) {
	_, err := extractJSONObject("nothing here")
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestRescaleConfidenceClamps(t *testing.T) {
	assert.Equal(t, 1.0, rescaleConfidence(150))
	assert.Equal(t, 0.0, rescaleConfidence(-5))
	assert.Equal(t, 0.5, rescaleConfidence(50))
}
