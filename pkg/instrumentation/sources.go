package instrumentation

import (
	"crypto/rand"
	mrand "math/rand/v2"
	"os"
	"time"

	"github.com/willibrandon/revdb/pkg/revdb"
)

// Now returns the wall clock time while recording and the recorded time
// while replaying. The monotonic reading is not kept.
func Now(s *revdb.Session) time.Time {
	ns := revdb.EmitAndBind(s, nil, func() int64 { return time.Now().UnixNano() })
	return time.Unix(0, ns)
}

// Since is time.Since over Now.
func Since(s *revdb.Session, t time.Time) time.Duration {
	return Now(s).Sub(t)
}

// Getpid returns the process id seen by the recording.
func Getpid(s *revdb.Session) int {
	return int(revdb.EmitAndBind(s, nil, func() int64 { return int64(os.Getpid()) }))
}

// Getenv returns the value of an environment variable as the recording saw
// it.
func Getenv(s *revdb.Session, key string) string {
	return revdb.EmitString(s, func() string { return os.Getenv(key) })
}

// LookupEnv is os.LookupEnv as the recording saw it.
func LookupEnv(s *revdb.Session, key string) (string, bool) {
	var value string
	ok := revdb.EmitAndBind(s, nil, func() bool {
		var found bool
		value, found = os.LookupEnv(key)
		return found
	})
	value = revdb.EmitString(s, func() string { return value })
	return value, ok
}

// Hostname is os.Hostname as the recording saw it. A failure is replayed as
// a *revdb.ReplayedError.
func Hostname(s *revdb.Session) (string, error) {
	var name string
	_, err := revdb.EmitCall(s, func() (bool, error) {
		var err error
		name, err = os.Hostname()
		return err == nil, err
	})
	if err != nil {
		return "", err
	}
	return revdb.EmitString(s, func() string { return name }), nil
}

// Uint64 returns a random number from r, or from the global source when r
// is nil.
func Uint64(s *revdb.Session, r *mrand.Rand) uint64 {
	return revdb.EmitAndBind(s, nil, func() uint64 {
		if r == nil {
			return mrand.Uint64()
		}
		return r.Uint64()
	})
}

// IntN returns a random number in [0, n).
func IntN(s *revdb.Session, r *mrand.Rand, n int) int {
	v := int(revdb.EmitAndBind(s, nil, func() int64 {
		if r == nil {
			return int64(mrand.IntN(n))
		}
		return int64(r.IntN(n))
	}))
	checkRange(v, n)
	return v
}

// ReadRandom fills p with cryptographically random bytes while recording
// and with the recorded bytes while replaying.
func ReadRandom(s *revdb.Session, p []byte) {
	got := revdb.EmitBytes(s, func() []byte {
		b := make([]byte, len(p))
		rand.Read(b)
		return b
	})
	if len(got) != len(p) {
		panic(divergence("random read", len(got), len(p)))
	}
	copy(p, got)
}
