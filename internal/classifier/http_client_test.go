package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHTTPClassifierClassify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/classify", r.URL.Path)

		var req classifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "status of 24-00123456", req.Text)
		assert.Len(t, req.History, 1)

		json.NewEncoder(w).Encode(classifyResponse{
			Intent:     "status_check",
			Entities:   map[string]string{EntityRequestNumber: "24-00123456"},
			Confidence: 0.91,
		})
	}))
	defer server.Close()

	c := NewHTTPClassifier(server.URL, 2*time.Second, zap.NewNop())
	got, err := c.Classify(context.Background(), "status of 24-00123456", []Turn{{Role: "bot", Text: "Hi!"}})
	require.NoError(t, err)

	assert.Equal(t, IntentStatusCheck, got.Intent)
	assert.Equal(t, "24-00123456", got.Entity(EntityRequestNumber))
	assert.InDelta(t, 0.91, got.Confidence, 1e-9)
}

func TestHTTPClassifierClampsConfidence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(classifyResponse{Intent: "GREETING", Confidence: 1.7})
	}))
	defer server.Close()

	c := NewHTTPClassifier(server.URL, 2*time.Second, zap.NewNop())
	got, err := c.Classify(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Confidence)
}

func TestHTTPClassifierUnknownIntentFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(classifyResponse{Intent: "SOMETHING_NEW", Confidence: 0.8})
	}))
	defer server.Close()

	c := NewHTTPClassifier(server.URL, 2*time.Second, zap.NewNop())
	got, err := c.Classify(context.Background(), "hmm", nil)
	require.NoError(t, err)
	assert.Equal(t, IntentGeneralInquiry, got.Intent)
}

func TestHTTPClassifierServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewHTTPClassifier(server.URL, 2*time.Second, zap.NewNop())
	_, err := c.Classify(context.Background(), "hi", nil)
	require.Error(t, err)
	assert.True(t, IsClassifierError(err))
}

func TestMatchesEscalationKeyword(t *testing.T) {
	assert.True(t, MatchesEscalationKeyword("I want to talk to a REAL PERSON"))
	assert.True(t, MatchesEscalationKeyword("please escalate this"))
	assert.False(t, MatchesEscalationKeyword("there is a pothole on 5th"))
}
