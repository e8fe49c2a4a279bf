package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/medsc/clinic-chat-bridge/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&MessageModel{}, &DoctorModel{}))
	return db
}

func TestMessageCreateOrIgnoreIsIdempotent(t *testing.T) {
	repo := NewMessageRepository(newTestDB(t))
	ctx := context.Background()

	msg := &domain.Message{
		ID:        "m1",
		SenderID:  "7",
		Body:      "hola",
		Timestamp: time.Now().Truncate(time.Second),
	}
	require.NoError(t, repo.CreateOrIgnore(ctx, "a1b2c3", msg))
	require.NoError(t, repo.CreateOrIgnore(ctx, "a1b2c3", msg))

	stored, err := repo.GetByConversation(ctx, "a1b2c3", 10, 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, "hola", stored[0].Body)
}

func TestMessageGetByConversationOrdersAndPaginates(t *testing.T) {
	repo := NewMessageRepository(newTestDB(t))
	ctx := context.Background()

	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.CreateOrIgnore(ctx, "a1b2c3", &domain.Message{
			ID:        fmt.Sprintf("m%d", i),
			SenderID:  "7",
			Body:      fmt.Sprintf("msg %d", i),
			Timestamp: base.Add(time.Duration(4-i) * time.Minute),
		}))
	}
	// A different conversation stays out of the result.
	require.NoError(t, repo.CreateOrIgnore(ctx, "other", &domain.Message{
		ID: "x", SenderID: "12", Body: "elsewhere", Timestamp: base,
	}))

	stored, err := repo.GetByConversation(ctx, "a1b2c3", 10, 0)
	require.NoError(t, err)
	require.Len(t, stored, 5)
	for i := 1; i < len(stored); i++ {
		require.False(t, stored[i].Timestamp.Before(stored[i-1].Timestamp))
	}

	page, err := repo.GetByConversation(ctx, "a1b2c3", 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
}

func TestMessageSearch(t *testing.T) {
	repo := NewMessageRepository(newTestDB(t))
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, repo.CreateOrIgnore(ctx, "a1b2c3", &domain.Message{
		ID: "m1", SenderID: "7", Body: "blood pressure results", Timestamp: now,
	}))
	require.NoError(t, repo.CreateOrIgnore(ctx, "12", &domain.Message{
		ID: "m2", SenderID: "12", Body: "appointment moved", Timestamp: now,
	}))
	require.NoError(t, repo.CreateOrIgnore(ctx, "a1b2c3", &domain.Message{
		ID: "m3", SenderID: "7", Body: "90% improvement", Timestamp: now,
	}))

	found, err := repo.Search(ctx, "pressure", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "m1", found[0].ID)

	// LIKE metacharacters in the query are literals.
	found, err = repo.Search(ctx, "90%", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "m3", found[0].ID)

	found, err = repo.Search(ctx, "nothing-here", 10)
	require.NoError(t, err)
	require.Empty(t, found)
}

func TestMessageDeleteByConversation(t *testing.T) {
	repo := NewMessageRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.CreateOrIgnore(ctx, "a1b2c3", &domain.Message{ID: "m1", SenderID: "7", Body: "uno"}))
	require.NoError(t, repo.CreateOrIgnore(ctx, "12", &domain.Message{ID: "m2", SenderID: "12", Body: "dos"}))

	require.NoError(t, repo.DeleteByConversation(ctx, "a1b2c3"))

	gone, err := repo.GetByConversation(ctx, "a1b2c3", 10, 0)
	require.NoError(t, err)
	require.Empty(t, gone)

	kept, err := repo.GetByConversation(ctx, "12", 10, 0)
	require.NoError(t, err)
	require.Len(t, kept, 1)
}

func TestDoctorUpsertAndLookup(t *testing.T) {
	repo := NewDoctorRepository(newTestDB(t))
	ctx := context.Background()

	doc := &domain.Doctor{
		ID:        "7",
		UID:       "a1b2c3",
		Name:      "Ana Ruiz",
		Specialty: "Cardiology",
		Status:    domain.PresenceOffline,
	}
	require.NoError(t, repo.Upsert(ctx, doc))

	// Upsert with the same key refreshes the row instead of duplicating.
	doc.Specialty = "Internal Medicine"
	require.NoError(t, repo.Upsert(ctx, doc))

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "Internal Medicine", all[0].Specialty)

	// Both identifier namespaces find the same doctor.
	byUID, err := repo.GetByKey(ctx, "a1b2c3")
	require.NoError(t, err)
	require.NotNil(t, byUID)
	require.Equal(t, "Ana Ruiz", byUID.Name)

	byLegacy, err := repo.GetByKey(ctx, "7")
	require.NoError(t, err)
	require.NotNil(t, byLegacy)
	require.Equal(t, "a1b2c3", byLegacy.Key())

	missing, err := repo.GetByKey(ctx, "999")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestDoctorGetAllOrdersByName(t *testing.T) {
	repo := NewDoctorRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &domain.Doctor{ID: "12", Name: "Luis Vega"}))
	require.NoError(t, repo.Upsert(ctx, &domain.Doctor{ID: "7", UID: "a1b2c3", Name: "Ana Ruiz"}))

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "Ana Ruiz", all[0].Name)
	require.Equal(t, "Luis Vega", all[1].Name)
}
