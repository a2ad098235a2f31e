package compute

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T) Context {
	t.Helper()
	ctx, err := Open(CPUName, 0)
	require.NoError(t, err)
	return ctx
}

func TestOpen(t *testing.T) {
	t.Run("unknown backend", func(t *testing.T) {
		_, err := Open("vulkan", 0)
		assert.ErrorIs(t, err, ErrNoBackend)
	})

	t.Run("opencl unavailable", func(t *testing.T) {
		_, err := Open(OpenCLName, 0)
		assert.ErrorIs(t, err, ErrBackendUnavailable)
	})

	t.Run("device out of range", func(t *testing.T) {
		_, err := Open(CPUName, 3)
		assert.ErrorIs(t, err, ErrNoDevice)
	})

	t.Run("names", func(t *testing.T) {
		assert.Equal(t, []string{CPUName, OpenCLName}, Names())
	})
}

func TestNewBuffer(t *testing.T) {
	b := NewCPUBackend(DeviceInfo{Name: "small", MaxWorkGroupSize: 64, LocalMemWords: 128, MaxAllocWords: 16})
	ctx, err := b.NewContext(0)
	require.NoError(t, err)

	_, err = ctx.NewBuffer(ReadWrite, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = ctx.NewBuffer(ReadWrite, 17, nil)
	assert.ErrorIs(t, err, ErrOutOfResources)

	_, err = ctx.NewBuffer(ReadOnly, 4, []uint32{1, 2})
	assert.ErrorIs(t, err, ErrInvalidSize)

	buf, err := ctx.NewBuffer(ReadOnly, 4, []uint32{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, 4, buf.Len())
	assert.Equal(t, ReadOnly, buf.Access())
	assert.Equal(t, 1, ctx.Live())

	require.NoError(t, buf.Release())
	assert.ErrorIs(t, buf.Release(), ErrReleased)
	assert.Equal(t, 0, ctx.Live())
	assert.NoError(t, ctx.Release())
}

func TestBuildProgram(t *testing.T) {
	ctx := newTestContext(t)

	_, err := ctx.BuildProgram(Source{Name: "empty"})
	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.ErrorIs(t, err, ErrBuildFailed)
	assert.Contains(t, be.Log, "no host kernels")

	_, err = ctx.BuildProgram(Source{Name: "broken", Host: map[string]KernelFunc{"a": nil, "b": nil}})
	require.ErrorAs(t, err, &be)
	assert.Contains(t, be.Log, `kernel "a" has no body`)
	assert.Contains(t, be.Log, `kernel "b" has no body`)

	prog, err := ctx.BuildProgram(Source{Name: "ok", Host: map[string]KernelFunc{"noop": func(*WorkGroup) error { return nil }}})
	require.NoError(t, err)
	assert.Contains(t, prog.BuildLog(), "1 kernels")

	_, err = prog.Kernel("missing")
	assert.ErrorIs(t, err, ErrUnknownKernel)

	require.NoError(t, prog.Release())
	assert.NoError(t, ctx.Release())
}

func TestSetArg(t *testing.T) {
	ctx := newTestContext(t)
	other := newTestContext(t)

	prog, err := ctx.BuildProgram(Source{Name: "p", Host: map[string]KernelFunc{"k": func(*WorkGroup) error { return nil }}})
	require.NoError(t, err)
	k, err := prog.Kernel("k")
	require.NoError(t, err)
	foreign, err := other.NewBuffer(ReadWrite, 1, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, k.SetArg(0, "text"), ErrInvalidArg)
	assert.ErrorIs(t, k.SetArg(0, -1), ErrInvalidArg)
	assert.ErrorIs(t, k.SetArg(0, Local(0)), ErrInvalidArg)
	assert.ErrorIs(t, k.SetArg(-1, uint32(1)), ErrInvalidArg)
	assert.ErrorIs(t, k.SetArg(0, foreign), ErrForeignObject)
	assert.NoError(t, k.SetArg(0, 7))
	assert.NoError(t, k.SetArg(1, Local(16)))

	require.NoError(t, foreign.Release())
	require.NoError(t, k.Release())
	require.NoError(t, prog.Release())
	assert.NoError(t, ctx.Release())
	assert.NoError(t, other.Release())
}

// blockSum writes, for every group, the sum of its slice of the input.
func blockSum(g *WorkGroup) error {
	in, out := g.Buffer(0), g.Buffer(1)
	scratch := g.Local(2)
	g.ForEachItem(func(i int) {
		scratch[i] = in[g.GlobalID(0, i)]
	})
	g.ForEachItem(func(i int) {
		if i == 0 {
			var s uint32
			for _, v := range scratch[:g.Items()] {
				s += v
			}
			out[g.GroupID(0)] = s
		}
	})
	return nil
}

func TestLaunch(t *testing.T) {
	ctx := newTestContext(t)
	q, err := ctx.NewQueue(true)
	require.NoError(t, err)
	prog, err := ctx.BuildProgram(Source{Name: "sum", Host: map[string]KernelFunc{"blockSum": blockSum}})
	require.NoError(t, err)
	k, err := prog.Kernel("blockSum")
	require.NoError(t, err)

	host := make([]uint32, 64)
	for i := range host {
		host[i] = uint32(i)
	}
	in, err := ctx.NewBuffer(ReadOnly, len(host), host)
	require.NoError(t, err)
	out, err := ctx.NewBuffer(WriteOnly, 4, nil)
	require.NoError(t, err)

	require.NoError(t, k.SetArg(0, in))
	require.NoError(t, k.SetArg(1, out))
	require.NoError(t, k.SetArg(2, Local(16)))

	ev, err := q.Launch(k, Range1D(64, 16))
	require.NoError(t, err)

	got := make([]uint32, 4)
	rd, err := q.ReadBuffer(out, got)
	require.NoError(t, err)
	require.NoError(t, rd.Wait())

	assert.Equal(t, []uint32{120, 376, 632, 888}, got)
	assert.Equal(t, Complete, ev.Status())
	p := ev.Profile()
	assert.False(t, p.Start.IsZero())
	assert.False(t, p.End.Before(p.Start))

	for _, r := range []interface{ Release() error }{k, prog, in, out, q} {
		require.NoError(t, r.Release())
	}
	assert.Equal(t, 0, ctx.Live())
	assert.NoError(t, ctx.Release())
}

func TestLaunchValidation(t *testing.T) {
	ctx := newTestContext(t)
	q, err := ctx.NewQueue(false)
	require.NoError(t, err)
	prog, err := ctx.BuildProgram(Source{Name: "sum", Host: map[string]KernelFunc{"blockSum": blockSum}})
	require.NoError(t, err)
	k, err := prog.Kernel("blockSum")
	require.NoError(t, err)

	tests := []struct {
		name string
		r    NDRange
	}{
		{"zero dims", NDRange{}},
		{"not a multiple", Range1D(10, 4)},
		{"zero local", Range1D(8, 0)},
		{"too large group", Range1D(4096, 2048)},
		{"unused dim set", NDRange{Dims: 1, Global: [3]int{4, 2, 1}, Local: [3]int{4, 1, 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := q.Launch(k, tt.r)
			assert.ErrorIs(t, err, ErrInvalidWorkSize)
		})
	}

	t.Run("unset argument", func(t *testing.T) {
		require.NoError(t, k.SetArg(2, Local(4)))
		_, err := q.Launch(k, Range1D(4, 4))
		assert.ErrorIs(t, err, ErrInvalidArg)
	})

	t.Run("local memory limit", func(t *testing.T) {
		buf, err := ctx.NewBuffer(ReadWrite, 4, nil)
		require.NoError(t, err)
		defer buf.Release()
		require.NoError(t, k.SetArg(0, buf))
		require.NoError(t, k.SetArg(1, buf))
		require.NoError(t, k.SetArg(2, Local(ctx.Device().LocalMemWords+1)))
		_, err = q.Launch(k, Range1D(4, 4))
		assert.ErrorIs(t, err, ErrOutOfResources)
	})

	require.NoError(t, k.Release())
	require.NoError(t, prog.Release())
	require.NoError(t, q.Release())
	assert.NoError(t, ctx.Release())
}

func TestQueueFailurePropagates(t *testing.T) {
	ctx := newTestContext(t)
	q, err := ctx.NewQueue(false)
	require.NoError(t, err)
	prog, err := ctx.BuildProgram(Source{Name: "bad", Host: map[string]KernelFunc{
		"fail":  func(*WorkGroup) error { return errors.New("boom") },
		"panic": func(g *WorkGroup) error { _ = g.Uint(0); return nil },
	}})
	require.NoError(t, err)
	fail, err := prog.Kernel("fail")
	require.NoError(t, err)
	pan, err := prog.Kernel("panic")
	require.NoError(t, err)
	buf, err := ctx.NewBuffer(ReadWrite, 2, nil)
	require.NoError(t, err)

	ev1, err := q.Launch(fail, Range1D(2, 1))
	require.NoError(t, err)
	ev2, err := q.CopyBuffer(buf, buf, 2)
	require.NoError(t, err)

	assert.ErrorIs(t, ev1.Wait(), ErrLaunchFailed)
	assert.ErrorIs(t, ev2.Wait(), ErrDependency)
	assert.Equal(t, Failed, ev2.Status())
	assert.Error(t, q.Finish())

	q2, err := ctx.NewQueue(false)
	require.NoError(t, err)
	require.NoError(t, pan.SetArg(0, buf))
	ev3, err := q2.Launch(pan, Range1D(1, 1))
	require.NoError(t, err)
	assert.ErrorIs(t, ev3.Wait(), ErrLaunchFailed)

	for _, r := range []interface{ Release() error }{fail, pan, prog, buf, q, q2} {
		require.NoError(t, r.Release())
	}
	assert.NoError(t, ctx.Release())
}

func TestCopyReadWrite(t *testing.T) {
	ctx := newTestContext(t)
	q, err := ctx.NewQueue(false)
	require.NoError(t, err)
	a, err := ctx.NewBuffer(ReadWrite, 4, nil)
	require.NoError(t, err)
	b, err := ctx.NewBuffer(ReadWrite, 4, nil)
	require.NoError(t, err)

	_, err = q.WriteBuffer(a, []uint32{4, 3, 2, 1})
	require.NoError(t, err)
	_, err = q.CopyBuffer(a, b, 3)
	require.NoError(t, err)
	got := make([]uint32, 4)
	_, err = q.ReadBuffer(b, got)
	require.NoError(t, err)
	require.NoError(t, q.Finish())
	assert.Equal(t, []uint32{4, 3, 2, 0}, got)

	_, err = q.CopyBuffer(a, b, 5)
	assert.ErrorIs(t, err, ErrInvalidSize)
	_, err = q.ReadBuffer(a, make([]uint32, 8))
	assert.ErrorIs(t, err, ErrInvalidSize)

	require.NoError(t, a.Release())
	_, err = q.ReadBuffer(a, got)
	assert.ErrorIs(t, err, ErrReleased)

	require.NoError(t, b.Release())
	require.NoError(t, q.Release())
	assert.NoError(t, ctx.Release())
}

func TestContextReleaseReportsLeaks(t *testing.T) {
	ctx := newTestContext(t)
	_, err := ctx.NewBuffer(ReadWrite, 8, nil)
	require.NoError(t, err)
	_, err = ctx.NewQueue(false)
	require.NoError(t, err)

	err = ctx.Release()
	assert.ErrorIs(t, err, ErrLeaked)
	assert.Contains(t, err.Error(), "buffer(8)")
	assert.Contains(t, err.Error(), "queue")
	assert.ErrorIs(t, ctx.Release(), ErrReleased)
}

func TestRange2DGroups(t *testing.T) {
	ctx := newTestContext(t)
	q, err := ctx.NewQueue(false)
	require.NoError(t, err)
	prog, err := ctx.BuildProgram(Source{Name: "ids", Host: map[string]KernelFunc{
		"ids": func(g *WorkGroup) error {
			out := g.Buffer(0)
			width := g.NumGroups(0) * g.LocalSize(0)
			g.ForEachItem(func(i int) {
				x := g.GlobalID(0, i%g.LocalSize(0))
				y := g.GlobalID(1, i/g.LocalSize(0))
				out[y*width+x] = uint32(y*100 + x)
			})
			return nil
		},
	}})
	require.NoError(t, err)
	k, err := prog.Kernel("ids")
	require.NoError(t, err)
	out, err := ctx.NewBuffer(WriteOnly, 4*6, nil)
	require.NoError(t, err)
	require.NoError(t, k.SetArg(0, out))

	_, err = q.Launch(k, Range2D(4, 6, 2, 3))
	require.NoError(t, err)
	got := make([]uint32, 24)
	_, err = q.ReadBuffer(out, got)
	require.NoError(t, err)
	require.NoError(t, q.Finish())

	for y := 0; y < 6; y++ {
		for x := 0; x < 4; x++ {
			assert.Equal(t, uint32(y*100+x), got[y*4+x], "x=%d y=%d", x, y)
		}
	}

	for _, r := range []interface{ Release() error }{k, prog, out, q} {
		require.NoError(t, r.Release())
	}
	assert.NoError(t, ctx.Release())
}
