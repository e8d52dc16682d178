package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"akinmueble/internal/models"
	"akinmueble/internal/notifications"
	"akinmueble/internal/repository"
	"akinmueble/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type requestEnv struct {
	db     *gorm.DB
	store  *repository.Store
	f      *testutil.Fixture
	mailer *mailerStub
	events *eventsStub
	svc    *RequestService
}

func newRequestEnv(t *testing.T) *requestEnv {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	env := &requestEnv{
		db:     db,
		store:  repository.NewStore(db),
		f:      testutil.Seed(t, db),
		mailer: &mailerStub{},
		events: &eventsStub{},
	}
	env.svc = NewRequestService(env.store, env.mailer, env.events)
	return env
}

func (e *requestEnv) reload(t *testing.T, id uint) *models.Request {
	t.Helper()
	var r models.Request
	require.NoError(t, e.db.First(&r, id).Error)
	return &r
}

func TestCreateRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("derives adviser from the property", func(t *testing.T) {
		env := newRequestEnv(t)
		env.f.Property.AdviserID = env.f.Adviser2.ID
		require.NoError(t, env.db.Save(&env.f.Property).Error)

		req, err := env.svc.CreateRequest(ctx, CreateRequestInput{
			ClientID:      env.f.Client.ID,
			PropertyID:    env.f.Property.ID,
			RequestTypeID: models.RequestTypeRent,
		})
		require.NoError(t, err)

		stored := env.reload(t, req.ID)
		assert.Equal(t, env.f.Adviser2.ID, stored.AdviserID)
		assert.Equal(t, models.StatusSent, stored.RequestStatusID)
		assert.Nil(t, stored.ContractID)
		assert.Nil(t, stored.GuarantorID)

		require.Equal(t, 1, env.mailer.count())
		msg := env.mailer.sent[0]
		assert.Equal(t, env.f.Adviser2.Email, msg.To)
		assert.Equal(t, notifications.SubjectNewRequest, msg.Subject)
		assert.Contains(t, msg.Body, "Price: 1500.00")
		assert.Contains(t, msg.Body, env.f.Client.Document)
		assert.Equal(t, []string{notifications.EventRequestCreated}, env.events.types())
	})

	t.Run("missing property", func(t *testing.T) {
		env := newRequestEnv(t)
		_, err := env.svc.CreateRequest(ctx, CreateRequestInput{ClientID: env.f.Client.ID, PropertyID: 999, RequestTypeID: models.RequestTypeSale})
		assert.True(t, models.IsCode(err, models.CodeNotFound))
		assert.Zero(t, env.mailer.count())
	})

	t.Run("missing client", func(t *testing.T) {
		env := newRequestEnv(t)
		_, err := env.svc.CreateRequest(ctx, CreateRequestInput{ClientID: 999, PropertyID: env.f.Property.ID, RequestTypeID: models.RequestTypeSale})
		assert.True(t, models.IsCode(err, models.CodeNotFound))
	})

	t.Run("invalid type", func(t *testing.T) {
		env := newRequestEnv(t)
		_, err := env.svc.CreateRequest(ctx, CreateRequestInput{ClientID: env.f.Client.ID, PropertyID: env.f.Property.ID, RequestTypeID: 7})
		assert.True(t, models.IsCode(err, models.CodeValidation))
	})

	t.Run("event publish failure does not fail creation", func(t *testing.T) {
		env := newRequestEnv(t)
		env.events.err = errors.New("redis down")
		req, err := env.svc.CreateRequest(ctx, CreateRequestInput{ClientID: env.f.Client.ID, PropertyID: env.f.Property.ID, RequestTypeID: models.RequestTypeSale})
		require.NoError(t, err)
		assert.NotZero(t, req.ID)
	})
}

func TestCancelByClient(t *testing.T) {
	ctx := context.Background()
	env := newRequestEnv(t)
	f := env.f

	inStudy := testutil.Request(t, env.db, &f.Property, f.Client.ID, models.StatusInStudy)
	sent := testutil.Request(t, env.db, &f.Property, f.Client.ID, models.StatusSent)
	othersSent := testutil.Request(t, env.db, &f.Property, f.Client2.ID, models.StatusSent)

	tests := []struct {
		name      string
		requestID uint
		clientID  uint
		want      bool
	}{
		{"in study", inStudy.ID, f.Client.ID, false},
		{"someone else's request", othersSent.ID, f.Client.ID, false},
		{"missing request", 9999, f.Client.ID, false},
		{"own sent request", sent.ID, f.Client.ID, true},
		{"already cancelled", sent.ID, f.Client.ID, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := env.svc.CancelByClient(ctx, tt.requestID, tt.clientID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}

	var count int64
	env.db.Model(&models.Request{}).Where("id = ?", sent.ID).Count(&count)
	assert.Zero(t, count)
	assert.Equal(t, models.StatusInStudy, env.reload(t, inStudy.ID).RequestStatusID)
	assert.Equal(t, models.StatusSent, env.reload(t, othersSent.ID).RequestStatusID)
	assert.Equal(t, []string{notifications.EventRequestCancelled}, env.events.types())
}

func TestDeleteRequest(t *testing.T) {
	ctx := context.Background()
	env := newRequestEnv(t)
	f := env.f

	sent := testutil.Request(t, env.db, &f.Property, f.Client.ID, models.StatusSent)
	accepted := testutil.Request(t, env.db, &f.Property, f.Client2.ID, models.StatusAccepted)

	err := env.svc.DeleteRequest(ctx, accepted.ID)
	assert.True(t, models.IsCode(err, models.CodeConflict))
	assert.Equal(t, models.StatusAccepted, env.reload(t, accepted.ID).RequestStatusID)

	require.NoError(t, env.svc.DeleteRequest(ctx, sent.ID))
	err = env.svc.DeleteRequest(ctx, sent.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
	assert.Equal(t, []string{notifications.EventRequestCancelled}, env.events.types())
}

func TestChangeStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("follows the lifecycle and notifies once per move", func(t *testing.T) {
		env := newRequestEnv(t)
		r := testutil.Request(t, env.db, &env.f.Property, env.f.Client.ID, models.StatusSent)

		got, err := env.svc.ChangeStatus(ctx, r.ID, models.StatusInStudy, "reviewing")
		require.NoError(t, err)
		assert.Equal(t, models.StatusInStudy, got.RequestStatusID)
		assert.Zero(t, env.mailer.count())

		got, err = env.svc.ChangeStatus(ctx, r.ID, models.StatusAccepted, "welcome")
		require.NoError(t, err)
		assert.Equal(t, models.StatusAccepted, got.RequestStatusID)
		require.NotNil(t, got.ContractID)

		var contract models.Contract
		require.NoError(t, env.db.First(&contract, *got.ContractID).Error)
		assert.NotEmpty(t, contract.Code)

		require.Equal(t, 1, env.mailer.count())
		assert.Equal(t, env.f.Client.Email, env.mailer.sent[0].To)
		assert.Equal(t, notifications.SubjectRequestResponse, env.mailer.sent[0].Subject)
		assert.Contains(t, env.mailer.sent[0].Body, "Accepted")
	})

	t.Run("repeating the current status is a no-op", func(t *testing.T) {
		env := newRequestEnv(t)
		r := testutil.Request(t, env.db, &env.f.Property, env.f.Client.ID, models.StatusInStudy)

		first, err := env.svc.ChangeStatus(ctx, r.ID, models.StatusRejected, "no")
		require.NoError(t, err)
		second, err := env.svc.ChangeStatus(ctx, r.ID, models.StatusRejected, "still no")
		require.NoError(t, err)

		assert.Equal(t, first.RequestStatusID, second.RequestStatusID)
		assert.Equal(t, "no", env.reload(t, r.ID).Comment)
		assert.Equal(t, 1, env.mailer.count())
		assert.Len(t, env.events.events, 1)
	})

	t.Run("rejects moves off the lifecycle", func(t *testing.T) {
		env := newRequestEnv(t)
		sent := testutil.Request(t, env.db, &env.f.Property, env.f.Client.ID, models.StatusSent)
		rejected := testutil.Request(t, env.db, &env.f.Property, env.f.Client2.ID, models.StatusRejected)
		accepted := testutil.Request(t, env.db, &env.f.Property2, env.f.Client.ID, models.StatusAccepted)

		cases := []struct {
			id uint
			to models.RequestStatus
		}{
			{sent.ID, models.StatusAccepted},
			{sent.ID, models.StatusCancelled},
			{rejected.ID, models.StatusInStudy},
			{accepted.ID, models.StatusAcceptedWithGuarantor},
			{accepted.ID, models.StatusSent},
		}
		for _, c := range cases {
			_, err := env.svc.ChangeStatus(ctx, c.id, c.to, "")
			assert.True(t, models.IsCode(err, models.CodeConflict), "%d -> %s", c.id, c.to)
		}
		assert.Equal(t, models.StatusSent, env.reload(t, sent.ID).RequestStatusID)
		assert.Zero(t, env.mailer.count())
	})

	t.Run("unknown status", func(t *testing.T) {
		env := newRequestEnv(t)
		r := testutil.Request(t, env.db, &env.f.Property, env.f.Client.ID, models.StatusSent)
		_, err := env.svc.ChangeStatus(ctx, r.ID, 42, "")
		assert.True(t, models.IsCode(err, models.CodeValidation))
	})

	t.Run("missing request", func(t *testing.T) {
		env := newRequestEnv(t)
		_, err := env.svc.ChangeStatus(ctx, 9999, models.StatusInStudy, "")
		assert.True(t, models.IsCode(err, models.CodeNotFound))
	})

	t.Run("one accepted request per property", func(t *testing.T) {
		env := newRequestEnv(t)
		testutil.Request(t, env.db, &env.f.Property, env.f.Client.ID, models.StatusAccepted)
		r := testutil.Request(t, env.db, &env.f.Property, env.f.Client2.ID, models.StatusInStudy)

		_, err := env.svc.ChangeStatus(ctx, r.ID, models.StatusAcceptedWithGuarantor, "")
		assert.True(t, models.IsCode(err, models.CodeConflict))
		assert.Equal(t, models.StatusInStudy, env.reload(t, r.ID).RequestStatusID)
	})
}

func TestAssignGuarantor(t *testing.T) {
	ctx := context.Background()

	t.Run("accepts a request under study", func(t *testing.T) {
		env := newRequestEnv(t)
		r := testutil.Request(t, env.db, &env.f.Property, env.f.Client.ID, models.StatusInStudy)

		ok, err := env.svc.AssignGuarantor(ctx, r.ID, env.f.Guarantor.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		stored := env.reload(t, r.ID)
		assert.Equal(t, models.StatusAccepted, stored.RequestStatusID)
		require.NotNil(t, stored.GuarantorID)
		assert.Equal(t, env.f.Guarantor.ID, *stored.GuarantorID)
	})

	t.Run("false when a lookup fails", func(t *testing.T) {
		env := newRequestEnv(t)
		r := testutil.Request(t, env.db, &env.f.Property, env.f.Client.ID, models.StatusInStudy)

		ok, err := env.svc.AssignGuarantor(ctx, r.ID, 9999)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = env.svc.AssignGuarantor(ctx, 9999, env.f.Guarantor.ID)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, models.StatusInStudy, env.reload(t, r.ID).RequestStatusID)
	})

	t.Run("false for a sent request", func(t *testing.T) {
		env := newRequestEnv(t)
		r := testutil.Request(t, env.db, &env.f.Property, env.f.Client.ID, models.StatusSent)
		ok, err := env.svc.AssignGuarantor(ctx, r.ID, env.f.Guarantor.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("false when the property already has an accepted request", func(t *testing.T) {
		env := newRequestEnv(t)
		testutil.Request(t, env.db, &env.f.Property, env.f.Client2.ID, models.StatusAccepted)
		r := testutil.Request(t, env.db, &env.f.Property, env.f.Client.ID, models.StatusInStudy)

		ok, err := env.svc.AssignGuarantor(ctx, r.ID, env.f.Guarantor.ID)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, env.reload(t, r.ID).GuarantorID)
	})
}

func TestAssignContract_Cascade(t *testing.T) {
	ctx := context.Background()
	env := newRequestEnv(t)
	f := env.f

	a := testutil.Request(t, env.db, &f.Property, f.Client.ID, models.StatusSent)
	b := testutil.Request(t, env.db, &f.Property, f.Client2.ID, models.StatusInStudy)
	c := testutil.Request(t, env.db, &f.Property2, f.Client2.ID, models.StatusAccepted)
	contract := &models.Contract{Code: "CT-1"}
	require.NoError(t, env.db.Create(contract).Error)

	ok, err := env.svc.AssignContract(ctx, a.ID, contract.ID)
	require.NoError(t, err)
	require.True(t, ok)

	storedA := env.reload(t, a.ID)
	require.NotNil(t, storedA.ContractID)
	assert.Equal(t, contract.ID, *storedA.ContractID)
	assert.Equal(t, models.StatusSent, storedA.RequestStatusID)

	storedB := env.reload(t, b.ID)
	assert.Equal(t, models.StatusRejected, storedB.RequestStatusID)
	assert.Equal(t, models.CascadeRejectionComment, storedB.Comment)

	storedC := env.reload(t, c.ID)
	assert.Equal(t, models.StatusAccepted, storedC.RequestStatusID)
	assert.Equal(t, c.Comment, storedC.Comment)

	assert.Equal(t, []string{f.Client2.Email}, env.mailer.recipients())
	assert.Equal(t, []string{notifications.EventRequestCascadeReject}, env.events.types())
}

func TestAssignContract_MissingSides(t *testing.T) {
	ctx := context.Background()
	env := newRequestEnv(t)
	r := testutil.Request(t, env.db, &env.f.Property, env.f.Client.ID, models.StatusInStudy)
	other := testutil.Request(t, env.db, &env.f.Property, env.f.Client2.ID, models.StatusSent)

	ok, err := env.svc.AssignContract(ctx, r.ID, 9999)
	require.NoError(t, err)
	assert.False(t, ok)

	contract := &models.Contract{Code: "CT-2"}
	require.NoError(t, env.db.Create(contract).Error)
	ok, err = env.svc.AssignContract(ctx, 9999, contract.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, models.StatusSent, env.reload(t, other.ID).RequestStatusID)
	assert.Zero(t, env.mailer.count())
}

func TestChangeAdviser(t *testing.T) {
	ctx := context.Background()
	env := newRequestEnv(t)
	r := testutil.Request(t, env.db, &env.f.Property, env.f.Client.ID, models.StatusSent)

	got, err := env.svc.ChangeAdviser(ctx, r.ID, env.f.Adviser2.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, env.f.Adviser2.ID, got.AdviserID)
	assert.Equal(t, env.f.Adviser2.ID, env.reload(t, r.ID).AdviserID)
	assert.ElementsMatch(t, []string{env.f.Adviser.Email, env.f.Adviser2.Email}, env.mailer.recipients())
	for _, msg := range env.mailer.sent {
		assert.Equal(t, notifications.SubjectAdviserChanged, msg.Subject)
	}

	got, err = env.svc.ChangeAdviser(ctx, r.ID, 9999)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = env.svc.ChangeAdviser(ctx, 9999, env.f.Adviser.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 2, env.mailer.count())
}

func TestEditRequest(t *testing.T) {
	ctx := context.Background()
	env := newRequestEnv(t)
	r := testutil.Request(t, env.db, &env.f.Property, env.f.Client.ID, models.StatusSent)

	comment := "please call after 5pm"
	end := time.Date(2027, 1, 31, 0, 0, 0, 0, time.UTC)
	got, err := env.svc.EditRequest(ctx, r.ID, EditRequestInput{Comment: &comment, RentalEndDate: &end})
	require.NoError(t, err)
	assert.Equal(t, comment, got.Comment)
	require.NotNil(t, got.RentalEndDate)
	assert.True(t, end.Equal(*got.RentalEndDate))
	assert.Equal(t, models.StatusSent, got.RequestStatusID)
}

func TestRequestQueries(t *testing.T) {
	ctx := context.Background()
	env := newRequestEnv(t)
	testutil.Request(t, env.db, &env.f.Property, env.f.Client.ID, models.StatusAccepted)
	testutil.Request(t, env.db, &env.f.Property, env.f.Client2.ID, models.StatusRejected)

	byProperty, err := env.svc.ListByProperty(ctx, env.f.Property.ID)
	require.NoError(t, err)
	assert.Len(t, byProperty, 2)

	_, err = env.svc.ListByProperty(ctx, 9999)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	now := time.Now().UTC()
	accepted, err := env.svc.AcceptedByAdviserBetween(ctx, env.f.Adviser.ID, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	assert.NotNil(t, accepted[0].Property)

	_, err = env.svc.AcceptedByAdviserBetween(ctx, env.f.Adviser.ID, now, now.Add(-time.Hour))
	assert.True(t, models.IsCode(err, models.CodeValidation))

	rejected, err := env.svc.ByAdviserAndStatus(ctx, env.f.Adviser.ID, models.StatusRejected)
	require.NoError(t, err)
	assert.Len(t, rejected, 1)

	_, err = env.svc.ByAdviserAndStatus(ctx, env.f.Adviser.ID, 0)
	assert.True(t, models.IsCode(err, models.CodeValidation))
}

func TestSendStaleDigest(t *testing.T) {
	ctx := context.Background()
	env := newRequestEnv(t)

	old := testutil.Request(t, env.db, &env.f.Property, env.f.Client.ID, models.StatusSent)
	old.Date = time.Now().UTC().Add(-96 * time.Hour)
	require.NoError(t, env.db.Save(old).Error)
	testutil.Request(t, env.db, &env.f.Property2, env.f.Client2.ID, models.StatusSent)

	n, err := env.svc.SendStaleDigest(ctx, 72*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Equal(t, 1, env.mailer.count())
	assert.Equal(t, env.f.Adviser.Email, env.mailer.sent[0].To)
	assert.Contains(t, env.mailer.sent[0].Body, "#")
}
