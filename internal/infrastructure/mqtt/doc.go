// Package mqtt publishes itemkeeper events to an MQTT broker.
//
// Every committed item change can be announced on
// itemkeeper/items/{owner_id}/{action} so other services react without
// polling the API. The client also keeps a retained status message on
// itemkeeper/system/status, backed by a Last Will so a crash is visible to
// subscribers.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.ItemEvent(ev.OwnerID, ev.Action)
//	err = client.PublishJSON(ctx, topic, ev)
//
// Publishing is optional for the service: callers log failures and carry on.
package mqtt
