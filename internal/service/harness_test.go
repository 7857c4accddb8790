package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"
	"sync"
	"testing"
	"time"

	"challenge_backend/internal/model"
	"challenge_backend/internal/repository"
	"challenge_backend/internal/testutil"
	"challenge_backend/internal/util"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type pushRecord struct {
	tokens []string
	msg    PushMessage
}

// recordingPusher keeps every push and reports tokens listed in stale as
// unregistered.
type recordingPusher struct {
	mu     sync.Mutex
	pushes []pushRecord
	stale  map[string]bool
	err    error
}

func (p *recordingPusher) Name() string { return "test" }

func (p *recordingPusher) Push(ctx context.Context, tokens []string, msg PushMessage) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes = append(p.pushes, pushRecord{tokens: append([]string(nil), tokens...), msg: msg})
	var stale []string
	for _, t := range tokens {
		if p.stale[t] {
			stale = append(stale, t)
		}
	}
	return stale, p.err
}

func (p *recordingPusher) Close() error { return nil }

// sent counts pushes of kind that reached token.
func (p *recordingPusher) sent(token, kind string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, rec := range p.pushes {
		if rec.msg.Kind != kind {
			continue
		}
		for _, t := range rec.tokens {
			if t == token {
				n++
			}
		}
	}
	return n
}

func (p *recordingPusher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes = nil
}

// memoryPhotos is a PhotoStore that keeps raw bytes in a map.
type memoryPhotos struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deleted   []string
	seq       int
	uploadErr error
}

func newMemoryPhotos() *memoryPhotos {
	return &memoryPhotos{objects: map[string][]byte{}}
}

func (m *memoryPhotos) UploadImage(ctx context.Context, folder, identifier string, data []byte, spec util.ImageSpec) (string, error) {
	if m.uploadErr != nil {
		return "", m.uploadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	url := fmt.Sprintf("mem://%s/%s-%d.jpg", folder, identifier, m.seq)
	m.objects[url] = data
	return url, nil
}

func (m *memoryPhotos) DeleteByURL(ctx context.Context, rawURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[rawURL]; !ok {
		return errUnmanagedURL
	}
	delete(m.objects, rawURL)
	m.deleted = append(m.deleted, rawURL)
	return nil
}

func (m *memoryPhotos) has(url string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[url]
	return ok
}

type stubVerifier map[string]*Identity

func (v stubVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	if id, ok := v[token]; ok {
		return id, nil
	}
	return nil, errors.New("token rejected")
}

type harness struct {
	db *gorm.DB

	users       *repository.UserRepository
	friendRepo  *repository.FriendshipRepository
	challengeDB *repository.ChallengeRepository
	submissions *repository.SubmissionRepository
	devices     *repository.DeviceRepository
	contacts    *repository.ContactRepository

	pusher   *recordingPusher
	photos   *memoryPhotos
	notifier *NotificationService

	friends    *FriendshipService
	challenges *ChallengeService

	now time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db := testutil.NewDB(t)
	rdb, _ := testutil.NewRedis(t)

	h := &harness{
		db:          db,
		users:       repository.NewUserRepository(db),
		friendRepo:  repository.NewFriendshipRepository(db, rdb),
		challengeDB: repository.NewChallengeRepository(db),
		submissions: repository.NewSubmissionRepository(db),
		devices:     repository.NewDeviceRepository(db),
		contacts:    repository.NewContactRepository(db),
		pusher:      &recordingPusher{stale: map[string]bool{}},
		photos:      newMemoryPhotos(),
		now:         time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC),
	}
	h.notifier = NewNotificationService(h.devices, h.pusher, time.Second)
	h.friends = NewFriendshipService(h.friendRepo, h.users, h.notifier)
	h.friends.now = h.clock
	h.challenges = NewChallengeService(h.challengeDB, h.submissions, h.users, h.photos, h.notifier)
	h.challenges.now = h.clock
	return h
}

func (h *harness) clock() time.Time { return h.now }

func (h *harness) advance(d time.Duration) { h.now = h.now.Add(d) }

// user creates an account with one registered device whose token is
// "tok-<name>".
func (h *harness) user(t *testing.T, name string) *model.User {
	t.Helper()
	u := testutil.CreateUser(t, h.db, name)
	require.NoError(t, h.devices.Upsert(context.Background(), &model.Device{UserID: u.ID, FCMToken: "tok-" + name}))
	return u
}

// befriend makes a and b friends through the request flow.
func (h *harness) befriend(t *testing.T, a, b *model.User) {
	t.Helper()
	ctx := context.Background()
	res, err := h.friends.SendRequest(ctx, a.ID, b.ID)
	require.NoError(t, err)
	_, err = h.friends.Respond(ctx, res.RequestID, b.ID, true)
	require.NoError(t, err)
}

// challenge creates a challenge owned by creator with the default bounds.
func (h *harness) challenge(t *testing.T, creator *model.User) *model.Challenge {
	t.Helper()
	c, err := h.challenges.Create(context.Background(), creator.ID, CreateChallengeParams{
		Title:    "Morning coffee",
		Category: "food",
	})
	require.NoError(t, err)
	return c
}

// join invites u to c and accepts on their behalf.
func (h *harness) join(t *testing.T, c *model.Challenge, u *model.User) *model.ChallengeInvitation {
	t.Helper()
	ctx := context.Background()
	n, err := h.challenges.Invite(ctx, c.ID, c.CreatorID, []uint{u.ID})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	inv, err := h.challengeDB.FindInvitation(ctx, c.ID, u.ID)
	require.NoError(t, err)
	inv, err = h.challenges.RespondToInvite(ctx, inv.ID, u.ID, true)
	require.NoError(t, err)
	return inv
}

// pngBytes is a small valid image for upload paths.
func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := imaging.New(16, 24, color.NRGBA{R: 200, G: 120, B: 40, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

var errInjected = errors.New("injected write failure")

// failWrite makes the nth create or delete against table fail. The returned
// func disarms it; it is also disarmed when the test ends.
func (h *harness) failWrite(t *testing.T, kind, table string, nth int) func() {
	t.Helper()
	seen := 0
	fn := func(tx *gorm.DB) {
		if tx.Statement.Table != table {
			return
		}
		seen++
		if seen == nth {
			tx.AddError(errInjected)
		}
	}

	name := fmt.Sprintf("test:fail_%s_%s", kind, table)
	var disarm func()
	switch kind {
	case "create":
		require.NoError(t, h.db.Callback().Create().Before("gorm:create").Register(name, fn))
		disarm = func() { _ = h.db.Callback().Create().Remove(name) }
	case "delete":
		require.NoError(t, h.db.Callback().Delete().Before("gorm:delete").Register(name, fn))
		disarm = func() { _ = h.db.Callback().Delete().Remove(name) }
	default:
		t.Fatalf("unsupported write kind %q", kind)
	}

	var once sync.Once
	off := func() { once.Do(disarm) }
	t.Cleanup(off)
	return off
}

// count returns the rows of m matching where.
func (h *harness) count(t *testing.T, m interface{}, where string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(m).Where(where, args...).Count(&n).Error)
	return n
}
