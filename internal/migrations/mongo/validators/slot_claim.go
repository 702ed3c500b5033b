package validators

import "go.mongodb.org/mongo-driver/bson"

// SlotClaimValidator pins the claim key format; the key is what makes two
// reservations at one instant collide.
var SlotClaimValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "reservation_id", "start_time", "created_at"},
		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
				"pattern":  `^slot_[0-9]{4}-[0-9]{2}-[0-9]{2}T[0-9]{2}:[0-9]{2}:[0-9]{2}Z$`,
			},
			"reservation_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},
			"start_time": bson.M{
				"bsonType": "date",
			},
			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
