package sqlxrepos

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-quiz/core"
	"github.com/trezcool/masomo-quiz/core/user"
	testutil "github.com/trezcool/masomo-quiz/tests"
)

func TestUserRepository(t *testing.T) {
	repo := NewUserRepository(testutil.PrepareDB(t))
	ctx := context.Background()

	student := testutil.CreateUser(t, repo, "Amani Kariuki", "amani", "amani@masomo.test", "s3cret-pass", []string{user.RoleStudent}, "c1", true)
	teacher := testutil.CreateUser(t, repo, "Baraka Otieno", "baraka", "baraka@masomo.test", "s3cret-pass", []string{user.RoleTeacher}, "", true)
	testutil.CreateUser(t, repo, "Chausiku Mwangi", "chausiku", "", "s3cret-pass", []string{user.RoleStudent}, "c2", false)

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetUser(ctx, user.GetFilter{ID: student.ID})
		require.NoError(t, err)
		assert.Equal(t, "amani", got.Username)
		assert.Equal(t, []string{user.RoleStudent}, got.Roles)
		assert.Equal(t, "c1", got.ClassID)
		assert.NoError(t, got.CheckPassword("s3cret-pass"))

		got, err = repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: "baraka@masomo.test"})
		require.NoError(t, err)
		assert.Equal(t, teacher.ID, got.ID)

		_, err = repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: "nobody"})
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
	})

	t.Run("uniqueness", func(t *testing.T) {
		assert.Equal(t, user.ErrUsernameExists, repo.CheckUsernameUniqueness(ctx, "amani", "new@masomo.test"))
		assert.Equal(t, user.ErrEmailExists, repo.CheckUsernameUniqueness(ctx, "new", "amani@masomo.test"))
		assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "amani", "amani@masomo.test", student))
		assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "new", ""))

		_, err := repo.CreateUser(ctx, user.User{Name: "Copy", Username: "amani", Roles: []string{user.RoleStudent}})
		assert.Equal(t, user.ErrUsernameExists, errors.Cause(err))
	})

	t.Run("query", func(t *testing.T) {
		active := true
		tests := []struct {
			name   string
			filter *user.QueryFilter
			want   int
		}{
			{"all", nil, 3},
			{"search", &user.QueryFilter{Search: "OTIENO"}, 1},
			{"students", &user.QueryFilter{Roles: []string{user.RoleStudent}}, 2},
			{"staff", &user.QueryFilter{Roles: []string{user.RoleTeacher, user.RoleAdmin}}, 1},
			{"class", &user.QueryFilter{ClassID: "c2"}, 1},
			{"active students", &user.QueryFilter{Roles: []string{user.RoleStudent}, IsActive: &active}, 1},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				users, err := repo.QueryUsers(ctx, tt.filter, []core.DBOrdering{{Field: "name", Ascending: true}})
				require.NoError(t, err)
				assert.Len(t, users, tt.want)
			})
		}
	})

	t.Run("update", func(t *testing.T) {
		student.Name = "Amani K."
		student.ClassID = "c3"
		updated, err := repo.UpdateUser(ctx, student)
		require.NoError(t, err)
		assert.Equal(t, "Amani K.", updated.Name)

		got, err := repo.GetUser(ctx, user.GetFilter{ID: student.ID})
		require.NoError(t, err)
		assert.Equal(t, "c3", got.ClassID)

		_, err = repo.UpdateUser(ctx, user.User{ID: "unknown", Name: "Ghost"})
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
	})
}
