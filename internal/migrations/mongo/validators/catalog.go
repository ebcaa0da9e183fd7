package validators

import "go.mongodb.org/mongo-driver/bson"

var SpaceValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"name", "capacity", "has_computers"},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},
			"name": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 100,
			},
			"capacity": bson.M{
				"bsonType": intTypes,
				"minimum":  1,
			},
			"has_computers": bson.M{
				"bsonType": "bool",
			},
			"computer_count": bson.M{
				"bsonType": intTypes,
				"minimum":  0,
			},
		},
	},
}

var SlotValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"weekday", "session", "start_time", "end_time"},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},
			"weekday": bson.M{
				"enum": []string{"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY"},
			},
			"session": bson.M{
				"bsonType": intTypes,
				"minimum":  1,
			},
			"start_time": bson.M{
				"bsonType": "string",
				"pattern":  `^([01]\d|2[0-3]):[0-5]\d$`,
			},
			"end_time": bson.M{
				"bsonType": "string",
				"pattern":  `^([01]\d|2[0-3]):[0-5]\d$`,
			},
		},
	},
}

var AccountValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"email", "roles"},
		"additionalProperties": true,

		"properties": bson.M{
			"name": bson.M{
				"bsonType":  "string",
				"maxLength": 100,
			},
			"email": bson.M{
				"bsonType":  "string",
				"minLength": 3,
				"maxLength": 254,
			},
			"password_hash": bson.M{
				"bsonType": "string",
			},
			"roles": bson.M{
				"bsonType": "string",
			},
		},
	},
}
