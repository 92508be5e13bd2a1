package setresolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekala-project/atom/internal/atomid"
	"github.com/ekala-project/atom/internal/errs"
)

func TestCheckSetConsistency(t *testing.T) {
	byOrigin := make(map[atomid.Origin]string)
	byName := make(map[string]atomid.Origin)

	require.NoError(t, checkSetConsistency(byOrigin, byName, "core", atomid.Origin("o1")))
	require.NoError(t, checkSetConsistency(byOrigin, byName, "core", atomid.Origin("o1")))

	err := checkSetConsistency(byOrigin, byName, "other", atomid.Origin("o1"))
	assert.ErrorIs(t, err, errs.ErrInconsistent)

	err = checkSetConsistency(byOrigin, byName, "core", atomid.Origin("o2"))
	assert.ErrorIs(t, err, errs.ErrInconsistent)
}

func TestCheckAndInsertAtom_AgreeingMirrors(t *testing.T) {
	atoms := make(map[atomid.AtomId]map[string]*VersionRevision)
	tag, _ := atomid.Validate("pkg")
	id := atomid.New(atomid.Origin("o1"), tag)

	require.NoError(t, checkAndInsertAtom(atoms, id, "1.0.0", "rev1", "https://mirror-a", nil))
	require.NoError(t, checkAndInsertAtom(atoms, id, "1.0.0", "rev1", "https://mirror-b", nil))

	vr := atoms[id]["1.0.0"]
	require.NotNil(t, vr)
	assert.Equal(t, "rev1", vr.Rev)
	assert.Len(t, vr.Remotes, 2)
}

func TestCheckAndInsertAtom_Disagreement(t *testing.T) {
	atoms := make(map[atomid.AtomId]map[string]*VersionRevision)
	tag, _ := atomid.Validate("pkg")
	id := atomid.New(atomid.Origin("o1"), tag)

	require.NoError(t, checkAndInsertAtom(atoms, id, "1.0.0", "rev1", "https://mirror-a", nil))
	err := checkAndInsertAtom(atoms, id, "1.0.0", "rev2", "https://mirror-b", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrInconsistent)
}
