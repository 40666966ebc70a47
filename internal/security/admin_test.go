package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrUpdateAdminUser(t *testing.T) {
	s := openStore(t)
	ctx := t.Context()
	db := s.DB()

	_, err := FindOrCreatePrivilege(ctx, db, "xvcorTEST", "")
	require.NoError(t, err)
	_, err = FindOrCreatePrivilege(ctx, db, "xpcorAnotherone", "")
	require.NoError(t, err)

	require.NoError(t, CreateOrUpdateAdminUser(ctx, db, "Testusername", "asfiusdhvn"))

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM xtcasUsers WHERE Username = 'Testusername'").Scan(&n))
	assert.Equal(t, 1, n)
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM xtcasAuthorities WHERE Username = 'Testusername' AND Authority = 'admin'").Scan(&n))
	assert.Equal(t, 1, n)

	links := func() int {
		var n int
		require.NoError(t, db.QueryRow(`
			SELECT COUNT(*) FROM xtcasLuUserPrivilegeUserGroup lu
			JOIN xtcasUserGroup g ON g.KeyLong = lu.UserGroupKey
			WHERE lu.LastAction > 0 AND g.KeyText = 'admin'`).Scan(&n))
		return n
	}
	assert.Equal(t, 2, links())

	_, err = FindOrCreatePrivilege(ctx, db, "xpcorLastOne", "")
	require.NoError(t, err)
	require.NoError(t, CreateOrUpdateAdminUser(ctx, db, "Testusername", "asfiusdhvn"))
	assert.Equal(t, 3, links())
}

func TestFindOrCreateUser_KeepsPassword(t *testing.T) {
	s := openStore(t)
	ctx := t.Context()
	db := s.DB()

	k1, err := FindOrCreateUser(ctx, db, "PasswortTest", "firstPW")
	require.NoError(t, err)
	k2, err := FindOrCreateUser(ctx, db, "PasswortTest", "secondPW")
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	var pw string
	require.NoError(t, db.QueryRow("SELECT Password FROM xtcasUsers WHERE Username = 'PasswortTest'").Scan(&pw))
	assert.Equal(t, "firstPW", pw)
}

func TestCreateOrUpdateUserGroup_AppendsTokens(t *testing.T) {
	s := openStore(t)
	ctx := t.Context()
	db := s.DB()

	token := func() string {
		var tok string
		require.NoError(t, db.QueryRow("SELECT SecurityToken FROM xtcasUserGroup WHERE KeyText = 'testGroup'").Scan(&tok))
		return tok
	}

	steps := []struct {
		add  string
		want string
	}{
		{"#FirstToken", "#FirstToken"},
		{"#FirstToken", "#FirstToken"},
		{"#SecondToken", "#FirstToken#SecondToken"},
		{"#FirstToken", "#FirstToken#SecondToken"},
	}
	for _, step := range steps {
		_, err := CreateOrUpdateUserGroup(ctx, db, "testGroup", step.add)
		require.NoError(t, err)
		assert.Equal(t, step.want, token(), "after adding %s", step.add)
	}
}

func TestFindOrCreatePrivilege_UpdatesChecker(t *testing.T) {
	s := openStore(t)
	ctx := t.Context()
	db := s.DB()

	k1, err := FindOrCreatePrivilege(ctx, db, "xpcorInsertOrder", "")
	require.NoError(t, err)
	k2, err := FindOrCreatePrivilege(ctx, db, "xpcorInsertOrder", "xpcorCheckOrder")
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	var checker string
	require.NoError(t, db.QueryRow("SELECT TransactionChecker FROM xtcasUserPrivilege WHERE KeyLong = ?", k1).Scan(&checker))
	assert.Equal(t, "xpcorCheckOrder", checker)
}

func TestMergeTokens(t *testing.T) {
	assert.Equal(t, "", mergeTokens("", ""))
	assert.Equal(t, "#a", mergeTokens("", "a"))
	assert.Equal(t, "#a#b", mergeTokens("#a", "#b#a"))
	assert.Equal(t, "#ab#a", mergeTokens("#ab", "#a"))
}
