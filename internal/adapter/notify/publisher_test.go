package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"status-promo-marketplace/internal/core/ports"
	"status-promo-marketplace/internal/core/ports/mocks"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestMultiPublisher_FansOut(t *testing.T) {
	ctrl := gomock.NewController(t)
	first := mocks.NewMockEventPublisher(ctrl)
	second := mocks.NewMockEventPublisher(ctrl)
	evt := testEvent()

	first.EXPECT().Publish(gomock.Any(), ports.TopicCampaigns, evt).Return(errors.New("broker down"))
	second.EXPECT().Publish(gomock.Any(), ports.TopicCampaigns, evt).Return(nil)

	err := MultiPublisher{first, second}.Publish(context.Background(), ports.TopicCampaigns, evt)

	assert.ErrorContains(t, err, "broker down")
}

func TestMultiPublisher_Empty(t *testing.T) {
	assert.NoError(t, MultiPublisher{}.Publish(context.Background(), ports.TopicCampaigns, testEvent()))
}

func TestLogPublisher_WritesEvent(t *testing.T) {
	var buf bytes.Buffer
	pub := NewLogPublisher(zerolog.New(&buf))
	evt := testEvent()

	assert.NoError(t, pub.Publish(context.Background(), ports.TopicPromotions, evt))
	assert.Contains(t, buf.String(), `"event_type":"promotion.paid"`)
	assert.Contains(t, buf.String(), evt.EntityID.String())
}
