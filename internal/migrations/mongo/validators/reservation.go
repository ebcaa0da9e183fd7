package validators

import "go.mongodb.org/mongo-driver/bson"

var intTypes = []string{"int", "long"}

var ReservationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"date_time",
			"date",
			"attendee_count",
			"creation_date",
			"space_id",
			"slot_ids",
			"owner_email",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"date_time": bson.M{
				"bsonType": "date",
			},

			"date": bson.M{
				"bsonType": "string",
				"pattern":  `^\d{4}-\d{2}-\d{2}$`,
			},

			"purpose": bson.M{
				"bsonType":  "string",
				"maxLength": 500,
			},

			"attendee_count": bson.M{
				"bsonType": intTypes,
				"minimum":  1,
			},

			"creation_date": bson.M{
				"bsonType": "string",
				"pattern":  `^\d{4}-\d{2}-\d{2}$`,
			},

			"space_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"slot_ids": bson.M{
				"bsonType":    "array",
				"minItems":    1,
				"maxItems":    20,
				"uniqueItems": true,
				"items": bson.M{
					"bsonType":  "string",
					"minLength": 1,
					"maxLength": 64,
				},
			},

			"owner_email": bson.M{
				"bsonType":  "string",
				"minLength": 3,
				"maxLength": 254,
			},
		},
	},
}

// SlotClaimValidator guards the (space, date, slot) claim documents whose
// _id makes double booking impossible.
var SlotClaimValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"space_id", "date", "slot_id", "reservation_id"},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},
			"space_id": bson.M{
				"bsonType": "string",
			},
			"date": bson.M{
				"bsonType": "string",
				"pattern":  `^\d{4}-\d{2}-\d{2}$`,
			},
			"slot_id": bson.M{
				"bsonType": "string",
			},
			"reservation_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},
		},
	},
}
