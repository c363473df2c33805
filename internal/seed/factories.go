// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"monolith/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "password123"

var storyColors = []string{"#4f46e5", "#db2777", "#059669", "#d97706", "#0891b2", "#7c3aed"}

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by seed presets and tests.
type Factory struct {
	db   *gorm.DB
	opts Options
	// synthetic ID counter when running in DryRun mode
	nextID uint
	rng    *rand.Rand
	hash   string
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := time.Now().UnixNano()
	gofakeit.Seed(seed)
	return &Factory{
		db:     db,
		opts:   opts,
		nextID: 1000,
		rng:    rand.New(rand.NewSource(seed)), //nolint:gosec // seeding only
	}
}

func (f *Factory) password() string {
	if f.opts.SkipBcrypt {
		return DemoPassword
	}
	if f.hash == "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("seed: bcrypt failed, storing plain demo password: %v", err)
			return DemoPassword
		}
		f.hash = string(hashed)
	}
	return f.hash
}

// recent returns a timestamp spread over the last MaxDays days.
func (f *Factory) recent() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	back := time.Duration(f.rng.Intn(maxDays))*24*time.Hour +
		time.Duration(f.rng.Intn(24))*time.Hour +
		time.Duration(f.rng.Intn(60))*time.Minute
	return time.Now().Add(-back)
}

func (f *Factory) create(v any) error {
	if f.opts.DryRun {
		return nil
	}
	return f.db.Create(v).Error
}

// CreateUser constructs and persists a sample `models.User`.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	person := gofakeit.Person()
	userName := fmt.Sprintf("%s_%d", gofakeit.Username(), gofakeit.Number(100, 999))
	user := &models.User{
		FullName:       person.FirstName + " " + person.LastName,
		UserName:       sanitizeUserName(userName),
		Email:          gofakeit.Email(),
		Password:       f.password(),
		Bio:            gofakeit.Sentence(10),
		Location:       gofakeit.City(),
		ProfilePicture: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
		CoverPhoto:     fmt.Sprintf("https://picsum.photos/seed/%s/1600/900", gofakeit.UUID()),
	}

	for _, override := range overrides {
		override(user)
	}

	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		log.Printf("[dry-run] CreateUser: %s", user.UserName)
		return user, nil
	}
	if err := f.create(user); err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost constructs a post of postType without persisting it. Useful for batching.
func (f *Factory) BuildPost(user *models.User, postType models.PostType, overrides ...func(*models.Post)) *models.Post {
	post := &models.Post{
		UserID:    user.ID,
		PostType:  postType,
		ImageURLs: []string{},
		CreatedAt: f.recent(),
	}
	switch postType {
	case models.PostTypeImage:
		post.ImageURLs = f.imageURLs()
	case models.PostTypeTextWithImage:
		post.Content = gofakeit.Paragraph(1, 2, 8, " ")
		post.ImageURLs = f.imageURLs()
	default:
		post.PostType = models.PostTypeText
		post.Content = gofakeit.Paragraph(1, 3, 10, "\n")
	}
	post.UpdatedAt = post.CreatedAt

	for _, override := range overrides {
		override(post)
	}
	return post
}

func (f *Factory) imageURLs() []string {
	n := 1 + f.rng.Intn(3)
	urls := make([]string, n)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://picsum.photos/seed/%s/800/800", gofakeit.UUID())
	}
	return urls
}

// CreatePostsBatch persists multiple posts in a single DB call when possible.
func (f *Factory) CreatePostsBatch(posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	if f.opts.DryRun {
		for _, p := range posts {
			f.nextID++
			p.ID = f.nextID
		}
		log.Printf("[dry-run] CreatePostsBatch: %d posts (no DB write)", len(posts))
		return nil
	}
	batch := f.opts.BatchSize
	if batch <= 0 {
		batch = 100
	}
	return f.db.CreateInBatches(posts, batch).Error
}

// CreateComment constructs and persists a sample `models.Comment` on the
// provided post authored by the provided user.
func (f *Factory) CreateComment(user *models.User, post *models.Post, overrides ...func(*models.Comment)) (*models.Comment, error) {
	comment := &models.Comment{
		Content: gofakeit.Sentence(8),
		UserID:  user.ID,
		PostID:  post.ID,
	}
	for _, override := range overrides {
		override(comment)
	}
	if err := f.create(comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateLike persists a like from `user` on `post`.
func (f *Factory) CreateLike(user *models.User, post *models.Post) error {
	return f.create(&models.Like{UserID: user.ID, PostID: post.ID})
}

// CreateFollow persists follower -> followed.
func (f *Factory) CreateFollow(follower, followed *models.User) error {
	return f.create(&models.Follow{FollowerID: follower.ID, FollowedID: followed.ID})
}

// CreateConnection persists a connection row. Accepted connections also get
// the mutual follow edges accepting a request would create.
func (f *Factory) CreateConnection(from, to *models.User, status models.ConnectionStatus) error {
	if err := f.create(&models.Connection{FromUserID: from.ID, ToUserID: to.ID, Status: status}); err != nil {
		return err
	}
	if status != models.ConnectionStatusAccepted {
		return nil
	}
	if err := f.CreateFollow(from, to); err != nil {
		return err
	}
	return f.CreateFollow(to, from)
}

// CreateStory persists a story that expires within ttl.
func (f *Factory) CreateStory(user *models.User, mediaType models.StoryMediaType, ttl time.Duration) (*models.Story, error) {
	// Spread creation across the visible window so expiries are staggered.
	age := time.Duration(f.rng.Int63n(int64(ttl)))
	created := time.Now().Add(-age).UTC()
	story := &models.Story{
		UserID:          user.ID,
		MediaType:       mediaType,
		BackgroundColor: storyColors[f.rng.Intn(len(storyColors))],
		ViewCount:       []uint{},
		CreatedAt:       created,
		ExpiresAt:       created.Add(ttl),
	}
	switch mediaType {
	case models.StoryMediaImage:
		story.MediaURL = fmt.Sprintf("https://picsum.photos/seed/%s/1080/1920", gofakeit.UUID())
	case models.StoryMediaVideo:
		story.MediaURL = "https://samplelib.com/lib/preview/mp4/sample-5s.mp4"
	default:
		story.Content = gofakeit.Sentence(6)
	}
	if err := f.create(story); err != nil {
		return nil, err
	}
	return story, nil
}

// CreateMessage constructs and persists a direct message from -> to.
func (f *Factory) CreateMessage(from, to *models.User, overrides ...func(*models.Message)) (*models.Message, error) {
	msg := &models.Message{
		FromUserID:  from.ID,
		ToUserID:    to.ID,
		Text:        gofakeit.Sentence(10),
		MessageType: models.MessageTypeText,
		CreatedAt:   f.recent(),
	}
	for _, override := range overrides {
		override(msg)
	}
	if err := f.create(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// sanitizeUserName keeps letters, digits, dashes and underscores and trims
// the result to the user name column width.
func sanitizeUserName(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '-' {
			out = append(out, c)
		}
	}
	if len(out) > 30 {
		out = out[len(out)-30:]
	}
	if len(out) == 0 || !isAlnum(out[0]) {
		out = append([]byte("u"), out...)
	}
	return string(out)
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
