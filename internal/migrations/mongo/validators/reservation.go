package validators

import "go.mongodb.org/mongo-driver/bson"

var ReservationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"start_time",
			"customer_name",
			"customer_phone",
			"owner_id",
			"status",
			"created_at",
			"updated_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"start_time": bson.M{
				"bsonType": "date",
			},

			"customer_name": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 100,
			},

			"customer_phone": bson.M{
				"bsonType": "string",
				"pattern":  `^\+[1-9][0-9]{6,14}$`,
			},

			"owner_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pending",
					"approved",
					"rejected",
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
