package mqtt

import "fmt"

// TopicPrefix is the root of every itemkeeper topic.
const TopicPrefix = "itemkeeper"

// Topics provides builders for itemkeeper MQTT topics.
//
//	topic := mqtt.Topics{}.ItemEvent("usr-1", "created")
//	// Returns: "itemkeeper/items/usr-1/created"
type Topics struct{}

// ItemEvent returns the topic an item change is published on.
//
// Example: itemkeeper/items/1/updated
func (Topics) ItemEvent(ownerID, action string) string {
	return fmt.Sprintf("%s/items/%s/%s", TopicPrefix, ownerID, action)
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: itemkeeper/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", TopicPrefix)
}

// OwnerItemEvents returns a pattern matching every event for one owner.
//
// Pattern: itemkeeper/items/1/+
func (Topics) OwnerItemEvents(ownerID string) string {
	return fmt.Sprintf("%s/items/%s/+", TopicPrefix, ownerID)
}

// AllItemEvents returns a pattern matching every item event.
//
// Pattern: itemkeeper/items/+/+
func (Topics) AllItemEvents() string {
	return fmt.Sprintf("%s/items/+/+", TopicPrefix)
}
