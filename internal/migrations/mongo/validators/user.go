package validators

import "go.mongodb.org/mongo-driver/bson"

var UserValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "phone", "role", "created_at"},
		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},
			"phone": bson.M{
				"bsonType": "string",
				"pattern":  `^\+[1-9][0-9]{6,14}$`,
			},
			"role": bson.M{
				"bsonType": "string",
				"enum":     []string{"customer", "provider"},
			},
			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
