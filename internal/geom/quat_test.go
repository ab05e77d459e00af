package geom

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuatApplyIdentity(t *testing.T) {
	t.Parallel()

	v := NewPoint3D(1, 2, 3)
	assert.Equal(t, v, Identity.Apply(v))
}

func TestQuatApplyRotatesAroundAxis(t *testing.T) {
	t.Parallel()

	q := FromAxisAngle(NewPoint3D(0, 0, 1), math.Pi/2)
	got := q.Apply(NewPoint3D(1, 0, 0))
	assert.InDelta(t, 0, got.X, 1e-9)
	assert.InDelta(t, 1, got.Y, 1e-9)
	assert.InDelta(t, 0, got.Z, 1e-9)
}

func TestQuatNormOfUnitQuat(t *testing.T) {
	t.Parallel()

	q := FromAxisAngle(NewPoint3D(1, 0, 0), 1.234)
	assert.InDelta(t, 1.0, q.Norm(), 1e-9)
}

func TestQuatConjugateInverts(t *testing.T) {
	t.Parallel()

	q := FromAxisAngle(NewPoint3D(0, 1, 0), 0.7)
	v := NewPoint3D(3, -1, 2)
	rotated := q.Apply(v)
	back := q.Conjugate().Apply(rotated)
	assert.InDelta(t, v.X, back.X, 1e-9)
	assert.InDelta(t, v.Y, back.Y, 1e-9)
	assert.InDelta(t, v.Z, back.Z, 1e-9)
}

func TestAverageQuatsOfIdenticalQuats(t *testing.T) {
	t.Parallel()

	q := FromAxisAngle(NewPoint3D(0, 0, 1), 0.3)
	avg := AverageQuats([]Quat{q, q, q}, nil)
	assert.True(t, avg.Aeq(q, 1e-9))
	assert.InDelta(t, 1.0, avg.Norm(), 1e-9)
}

func TestRotationOfVecToVecMapsFromOntoTo(t *testing.T) {
	t.Parallel()

	from := NewPoint3D(1, 0, 0)
	to := NewPoint3D(0, 1, 0)
	q := RotationOfVecToVec(from, to)
	got := q.Apply(from)
	assert.InDelta(t, to.X, got.X, 1e-9)
	assert.InDelta(t, to.Y, got.Y, 1e-9)
	assert.InDelta(t, to.Z, got.Z, 1e-9)
}

func TestRotationOfVecToVecIdentityForParallelVectors(t *testing.T) {
	t.Parallel()

	v := NewPoint3D(0, 1, 2).Normalize()
	q := RotationOfVecToVec(v, v)
	assert.True(t, q.Aeq(Identity, 1e-9))
}

func TestRotationOfVecToVecHandlesAntiparallelVectors(t *testing.T) {
	t.Parallel()

	v := NewPoint3D(1, 0, 0)
	q := RotationOfVecToVec(v, v.Scale(-1))
	got := q.Apply(v)
	assert.InDelta(t, -1, got.X, 1e-9)
	assert.InDelta(t, 0, got.Y, 1e-9)
	assert.InDelta(t, 0, got.Z, 1e-9)
}

func TestQuatMarshalJSONRendersRIJKArray(t *testing.T) {
	t.Parallel()

	q := NewQuat(0.5, 0.1, 0.2, 0.3)
	data, err := json.Marshal(q)
	require.NoError(t, err)
	assert.JSONEq(t, `[0.5, 0.1, 0.2, 0.3]`, string(data))
}

func TestQuatUnmarshalJSONRoundTrip(t *testing.T) {
	t.Parallel()

	q := NewQuat(0.5, 0.1, 0.2, 0.3)
	data, err := json.Marshal(q)
	require.NoError(t, err)

	var got Quat
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, q, got)
}

func TestAverageQuatsSignAlignment(t *testing.T) {
	t.Parallel()

	q := FromAxisAngle(NewPoint3D(0, 0, 1), 0.3)
	negQ := NewQuat(-q.R(), -q.I(), -q.J(), -q.K())
	avg := AverageQuats([]Quat{q, negQ}, nil)
	assert.True(t, avg.Aeq(q, 1e-9))
}
