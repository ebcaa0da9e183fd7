//go:build integration

package integration

import (
	"net/http"
	"sync"
	"testing"

	"roombook/internal/reservations/repository"
	apperrors "roombook/pkg/errors"
	"roombook/pkg/model"
	"roombook/test/integration/testutil"
)

func createReservation(t *testing.T, client *testutil.Client, input model.ReservationInput) model.ReservationView {
	t.Helper()
	resp := client.POST(t, "/api/v1/reservations", input)
	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	var view model.ReservationView
	resp.Data(t, &view)
	return view
}

func TestCreate_ValidReservation(t *testing.T) {
	env := testutil.NewTestEnv()
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	student := env.As(t, client, testutil.StudentEmail, testutil.RequesterRoles)

	input := testutil.NewReservationBuilder().WithSlots("10", "11").Build()
	view := createReservation(t, student, input)

	if view.ID == "" {
		t.Error("expected generated ID")
	}
	if view.OwnerEmail != testutil.StudentEmail {
		t.Errorf("expected owner %s, got %s", testutil.StudentEmail, view.OwnerEmail)
	}
	if view.Space.ID != testutil.LectureHallID || view.Space.Capacity != 30 {
		t.Errorf("unexpected space snapshot: %+v", view.Space)
	}
	if len(view.Slots) != 2 {
		t.Errorf("expected 2 slots, got %d", len(view.Slots))
	}

	if count := mongo.CountDocuments(t, repository.CollectionName); count != 1 {
		t.Errorf("expected 1 reservation document, got %d", count)
	}
	if count := mongo.CountDocuments(t, repository.SlotClaimCollectionName); count != 2 {
		t.Errorf("expected 2 slot claims, got %d", count)
	}
}

func TestCreate_Rejections(t *testing.T) {
	env := testutil.NewTestEnv()
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	student := env.As(t, client, testutil.StudentEmail, testutil.RequesterRoles)

	tests := []struct {
		name   string
		input  model.ReservationInput
		status int
		code   string
	}{
		{
			name:   "past date",
			input:  testutil.NewReservationBuilder().WithDaysAhead(-2).Build(),
			status: http.StatusUnprocessableEntity,
			code:   apperrors.CodePastDate,
		},
		{
			name:   "over capacity",
			input:  testutil.NewReservationBuilder().WithSpace(testutil.SeminarRoomID).WithAttendees(11).Build(),
			status: http.StatusUnprocessableEntity,
			code:   apperrors.CodeCapacityExceeded,
		},
		{
			name:   "no attendees",
			input:  testutil.NewReservationBuilder().WithAttendees(0).Build(),
			status: http.StatusUnprocessableEntity,
			code:   apperrors.CodeCapacityExceeded,
		},
		{
			name:   "unknown space",
			input:  testutil.NewReservationBuilder().WithSpace("99").Build(),
			status: http.StatusNotFound,
			code:   apperrors.CodeSpaceNotFound,
		},
		{
			name:   "unknown slots only",
			input:  testutil.NewReservationBuilder().WithSlots("98", "99").Build(),
			status: http.StatusUnprocessableEntity,
			code:   apperrors.CodeSlotNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := student.POST(t, "/api/v1/reservations", tt.input)
			testutil.AssertErrorCode(t, resp, tt.status, tt.code)
		})
	}

	if count := mongo.CountDocuments(t, repository.CollectionName); count != 0 {
		t.Errorf("rejected requests must not persist anything, found %d", count)
	}
}

func TestCreate_SlotConflict(t *testing.T) {
	env := testutil.NewTestEnv()
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	student := env.As(t, client, testutil.StudentEmail, testutil.RequesterRoles)
	other := env.As(t, client, testutil.StudentBEmail, testutil.RequesterRoles)

	createReservation(t, student, testutil.NewReservationBuilder().WithSlots("10", "11").Build())

	resp := other.POST(t, "/api/v1/reservations", testutil.NewReservationBuilder().WithSlots("11", "12").Build())
	testutil.AssertErrorCode(t, resp, http.StatusConflict, apperrors.CodeSlotConflict)

	// Same slots in another space or on another day are free.
	createReservation(t, other, testutil.NewReservationBuilder().WithSpace(testutil.SeminarRoomID).WithSlots("11").Build())
	createReservation(t, other, testutil.NewReservationBuilder().WithDaysAhead(8).WithSlots("11").Build())
}

func TestCreate_ConcurrentRequestsForOneSlot(t *testing.T) {
	env := testutil.NewTestEnv()
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	callers := []*testutil.Client{
		env.As(t, client, testutil.StudentEmail, testutil.RequesterRoles),
		env.As(t, client, testutil.StudentBEmail, testutil.RequesterRoles),
		env.As(t, client, testutil.AdminEmail, testutil.AdminRoles),
	}
	input := testutil.NewReservationBuilder().WithSlots("12").Build()

	statuses := make([]int, len(callers))
	var wg sync.WaitGroup
	for i, c := range callers {
		wg.Add(1)
		go func(i int, c *testutil.Client) {
			defer wg.Done()
			statuses[i] = c.POST(t, "/api/v1/reservations", input).StatusCode
		}(i, c)
	}
	wg.Wait()

	created := 0
	for _, status := range statuses {
		switch status {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
		default:
			t.Errorf("unexpected status %d", status)
		}
	}
	if created != 1 {
		t.Fatalf("expected exactly one reservation to win the slot, got %d", created)
	}
	if count := mongo.CountDocuments(t, repository.SlotClaimCollectionName); count != 1 {
		t.Errorf("expected 1 slot claim, got %d", count)
	}
}

func TestUpdate_OwnerAndAdmin(t *testing.T) {
	env := testutil.NewTestEnv()
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	student := env.As(t, client, testutil.StudentEmail, testutil.RequesterRoles)
	other := env.As(t, client, testutil.StudentBEmail, testutil.RequesterRoles)
	admin := env.As(t, client, testutil.AdminEmail, testutil.AdminRoles)

	builder := testutil.NewReservationBuilder().WithSlots("10")
	view := createReservation(t, student, builder.Build())
	path := "/api/v1/reservations/id/" + view.ID

	resp := other.PUT(t, path, builder.WithPurpose("hijack").AsUpdate())
	testutil.AssertErrorCode(t, resp, http.StatusForbidden, apperrors.CodeForbidden)

	// Moving onto its own slot plus a free one does not conflict with itself.
	resp = student.PUT(t, path, builder.WithPurpose("Exam prep").WithSlots("10", "11").AsUpdate())
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	var updated model.ReservationView
	resp.Data(t, &updated)
	if updated.Purpose != "Exam prep" || len(updated.Slots) != 2 {
		t.Errorf("update not applied: %+v", updated)
	}
	if updated.OwnerEmail != testutil.StudentEmail || updated.CreationDate != view.CreationDate {
		t.Errorf("owner and creation date must not change: %+v", updated)
	}

	resp = admin.PUT(t, path, builder.WithAttendees(8).AsUpdate())
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	if count := mongo.CountDocuments(t, repository.SlotClaimCollectionName); count != 2 {
		t.Errorf("expected 2 slot claims after update, got %d", count)
	}
}

func TestUpdate_ConflictWithAnotherReservation(t *testing.T) {
	env := testutil.NewTestEnv()
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	student := env.As(t, client, testutil.StudentEmail, testutil.RequesterRoles)

	createReservation(t, student, testutil.NewReservationBuilder().WithSlots("10").Build())
	second := testutil.NewReservationBuilder().WithSlots("12")
	view := createReservation(t, student, second.Build())

	resp := student.PUT(t, "/api/v1/reservations/id/"+view.ID, second.WithSlots("10", "12").AsUpdate())
	testutil.AssertErrorCode(t, resp, http.StatusConflict, apperrors.CodeSlotConflict)
}

func TestDelete_ReleasesSlots(t *testing.T) {
	env := testutil.NewTestEnv()
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	student := env.As(t, client, testutil.StudentEmail, testutil.RequesterRoles)
	other := env.As(t, client, testutil.StudentBEmail, testutil.RequesterRoles)

	input := testutil.NewReservationBuilder().WithSlots("11").Build()
	view := createReservation(t, student, input)
	path := "/api/v1/reservations/id/" + view.ID

	testutil.AssertErrorCode(t, other.DELETE(t, path), http.StatusForbidden, apperrors.CodeForbidden)
	testutil.AssertStatusCode(t, student.DELETE(t, path), http.StatusNoContent)
	testutil.AssertErrorCode(t, student.GET(t, path), http.StatusNotFound, apperrors.CodeReservationNotFound)

	createReservation(t, other, input)
}

func TestListBySpace(t *testing.T) {
	env := testutil.NewTestEnv()
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	student := env.As(t, client, testutil.StudentEmail, testutil.RequesterRoles)

	createReservation(t, student, testutil.NewReservationBuilder().WithSlots("10").Build())
	createReservation(t, student, testutil.NewReservationBuilder().WithDaysAhead(14).WithSlots("10").Build())
	createReservation(t, student, testutil.NewReservationBuilder().WithSpace(testutil.SeminarRoomID).Build())

	resp := student.GET(t, "/api/v1/spaces/"+testutil.LectureHallID+"/reservations")
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	var views []model.ReservationView
	resp.Data(t, &views)
	if len(views) != 2 {
		t.Fatalf("expected 2 reservations for the lecture hall, got %d", len(views))
	}
	for _, v := range views {
		if v.Space.ID != testutil.LectureHallID {
			t.Errorf("reservation %s belongs to space %s", v.ID, v.Space.ID)
		}
	}

	resp = student.GET(t, "/api/v1/spaces/"+testutil.LectureHallID+"/reservations?future=true")
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	views = nil
	resp.Data(t, &views)
	if len(views) != 2 {
		t.Errorf("expected both upcoming reservations, got %d", len(views))
	}

	resp = student.GET(t, "/api/v1/spaces/99/reservations")
	testutil.AssertErrorCode(t, resp, http.StatusNotFound, apperrors.CodeSpaceNotFound)
}

func TestAuthentication_Required(t *testing.T) {
	env := testutil.NewTestEnv()
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	resp := client.POST(t, "/api/v1/reservations", testutil.NewReservationBuilder().Build())
	testutil.AssertErrorCode(t, resp, http.StatusUnauthorized, apperrors.CodeUnauthorized)

	forged := client.WithToken(testutil.MintToken(t, "a-different-secret-of-sufficient-size", testutil.AdminEmail, testutil.AdminRoles))
	resp = forged.GET(t, "/api/v1/reservations")
	testutil.AssertErrorCode(t, resp, http.StatusUnauthorized, apperrors.CodeUnauthorized)
}
