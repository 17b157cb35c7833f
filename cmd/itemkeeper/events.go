package main

import (
	"context"

	"github.com/nerrad567/itemkeeper/internal/infrastructure/mqtt"
	"github.com/nerrad567/itemkeeper/internal/item"
)

// mqttPublisher announces item changes on itemkeeper/items/{owner}/{action}.
type mqttPublisher struct {
	client *mqtt.Client
}

func (p *mqttPublisher) PublishItemEvent(ctx context.Context, ev item.Event) error {
	return p.client.PublishJSON(ctx, mqtt.Topics{}.ItemEvent(ev.OwnerID, ev.Action), ev)
}
