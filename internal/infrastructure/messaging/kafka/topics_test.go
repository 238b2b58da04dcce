package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/turtacn/entigo/pkg/errors"
	"github.com/turtacn/entigo/pkg/types/entity"
)

func TestDecodeUtterance(t *testing.T) {
	msg, err := DecodeUtterance([]byte(`{"id":"u-1","text":"order 100 czk","expected_entities":["PRICE"]}`))
	require.NoError(t, err)
	assert.Equal(t, &UtteranceMessage{ID: "u-1", Text: "order 100 czk", ExpectedEntities: []string{"PRICE"}}, msg)
}

func TestDecodeUtterance_GeneratesID(t *testing.T) {
	msg, err := DecodeUtterance([]byte(`{"text":"hello"}`))
	require.NoError(t, err)
	_, parseErr := uuid.Parse(msg.ID)
	assert.NoError(t, parseErr)
}

func TestDecodeUtterance_Errors(t *testing.T) {
	_, err := DecodeUtterance([]byte(`{not json`))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeSerialization))

	_, err = DecodeUtterance([]byte(`{"id":"u-2","text":"   "}`))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))
}

func TestNewResolvedProducerMessage(t *testing.T) {
	resolved := &ResolvedMessage{
		ID:        "u-1",
		RequestID: "r-1",
		Result: entity.Result{
			Text:     "my email is @EMAIL",
			Entities: []entity.Entity{{Entity: "EMAIL", Start: 12, End: 19, Text: "a@b.com", Score: 0.99, Value: "a@b.com"}},
			Intents:  []entity.Intent{},
		},
	}

	pm, err := NewResolvedProducerMessage(TopicResolved, resolved)
	require.NoError(t, err)
	assert.Equal(t, TopicResolved, pm.Topic)
	assert.Equal(t, []byte("u-1"), pm.Key)
	assert.Equal(t, "r-1", pm.Headers[HeaderRequestID])
	assert.WithinDuration(t, time.Now(), pm.Timestamp, time.Minute)

	var decoded ResolvedMessage
	require.NoError(t, json.Unmarshal(pm.Value, &decoded))
	assert.Equal(t, "my email is @EMAIL", decoded.Result.Text)
	require.Len(t, decoded.Result.Entities, 1)
	assert.Equal(t, 12, decoded.Result.Entities[0].Start)
}

//Personal.AI order the ending
