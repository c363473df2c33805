package seed

import (
	"fmt"
	"log"
	"strings"
	"time"

	"monolith/internal/models"

	"gorm.io/gorm"
)

// Options configures the seeder.
type Options struct {
	// SkipBcrypt stores the demo password unhashed; only for fast local runs.
	SkipBcrypt bool
	// DryRun builds entities without writing them.
	DryRun bool
	// MaxDays bounds how far back post and message timestamps go.
	MaxDays int
	// BatchSize is the insert batch size for posts.
	BatchSize int
	// StoryTTL is the visible window of seeded stories.
	StoryTTL time.Duration
}

// Distribution is the share of each post type, in percent.
type Distribution struct {
	Text          int
	Image         int
	TextWithImage int
}

var defaultDistribution = Distribution{Text: 50, Image: 20, TextWithImage: 30}

// Preset is a named seeding size.
type Preset struct {
	Users            int
	Posts            int
	StoriesPerUser   int
	MessagesPerPair  int
	PostDistribution Distribution
}

// Presets are the sizes accepted by ApplyPreset.
var Presets = map[string]Preset{
	"small": {Users: 8, Posts: 30, StoriesPerUser: 1, MessagesPerPair: 3, PostDistribution: defaultDistribution},
	"demo":  {Users: 25, Posts: 150, StoriesPerUser: 2, MessagesPerPair: 6, PostDistribution: defaultDistribution},
	"large": {Users: 250, Posts: 2500, StoriesPerUser: 2, MessagesPerPair: 10, PostDistribution: Distribution{Text: 40, Image: 30, TextWithImage: 30}},
}

// demoAccounts are created first so there is always a known login.
var demoAccounts = []struct{ userName, fullName string }{
	{"alice", "Alice Martin"},
	{"bob", "Bob Okafor"},
	{"carol", "Carol Nguyen"},
}

// Seeder populates the database with demo data.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
}

// NewSeeder returns a Seeder writing through db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	if opts.StoryTTL <= 0 {
		opts.StoryTTL = 24 * time.Hour
	}
	return &Seeder{db: db, opts: opts, factory: NewFactory(db, opts)}
}

// ClearAll removes every row of the social tables.
func (s *Seeder) ClearAll() error {
	if s.opts.DryRun {
		return nil
	}
	log.Println("🗑️  Clearing existing data...")
	tables := []string{"messages", "stories", "comments", "likes", "posts", "connections", "follows", "users"}
	if s.db.Dialector.Name() == "postgres" {
		return s.db.Exec("TRUNCATE TABLE " + strings.Join(tables, ", ") + " RESTART IDENTITY CASCADE").Error
	}
	for _, table := range tables {
		if err := s.db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// ApplyPreset seeds one of Presets by name.
func (s *Seeder) ApplyPreset(name string) error {
	preset, ok := Presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return fmt.Errorf("unknown seed preset %q", name)
	}
	users, err := s.SeedSocialMesh(preset.Users)
	if err != nil {
		return err
	}
	if _, err := s.SeedEngagementWithDistribution(users, preset.Posts, preset.PostDistribution); err != nil {
		return err
	}
	if err := s.SeedStories(users, preset.StoriesPerUser); err != nil {
		return err
	}
	return s.SeedMessages(users, preset.MessagesPerPair)
}

// SeedSocialMesh creates count users (demo accounts first) and links them:
// each user is connected to the next one in the ring, follows the one after
// and has a pending request out to the third.
func (s *Seeder) SeedSocialMesh(count int) ([]*models.User, error) {
	users := make([]*models.User, 0, count)
	for i := 0; i < count; i++ {
		var overrides []func(*models.User)
		if i < len(demoAccounts) {
			acct := demoAccounts[i]
			overrides = append(overrides, func(u *models.User) {
				u.UserName = acct.userName
				u.FullName = acct.fullName
				u.Email = acct.userName + "@example.com"
			})
		}
		u, err := s.factory.CreateUser(overrides...)
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		users = append(users, u)
	}
	log.Printf("✓ %d users created", len(users))

	n := len(users)
	if n < 2 {
		return users, nil
	}
	for i, u := range users {
		next := users[(i+1)%n]
		// With two users the ring closes on itself; link the pair once.
		if n > 2 || i == 0 {
			if err := s.factory.CreateConnection(u, next, models.ConnectionStatusAccepted); err != nil {
				return nil, fmt.Errorf("connect users: %w", err)
			}
		}
		if n > 3 {
			if err := s.factory.CreateFollow(u, users[(i+2)%n]); err != nil {
				return nil, fmt.Errorf("follow user: %w", err)
			}
		}
		// Pairs three apart would collide with ring connections when n <= 6.
		if n > 6 && i%2 == 0 {
			if err := s.factory.CreateConnection(u, users[(i+3)%n], models.ConnectionStatusPending); err != nil {
				return nil, fmt.Errorf("request connection: %w", err)
			}
		}
	}
	log.Printf("✓ social graph linked")
	return users, nil
}

// SeedEngagement creates numPosts posts using the default type mix, then
// likes and comments from the authors' neighbours.
func (s *Seeder) SeedEngagement(users []*models.User, numPosts int) ([]*models.Post, error) {
	return s.SeedEngagementWithDistribution(users, numPosts, defaultDistribution)
}

// SeedEngagementWithDistribution is SeedEngagement with an explicit type mix.
func (s *Seeder) SeedEngagementWithDistribution(users []*models.User, numPosts int, d Distribution) ([]*models.Post, error) {
	if len(users) == 0 || numPosts <= 0 {
		return nil, nil
	}
	text, image, mixed := computeCounts(numPosts, d)
	types := make([]models.PostType, 0, numPosts)
	for range text {
		types = append(types, models.PostTypeText)
	}
	for range image {
		types = append(types, models.PostTypeImage)
	}
	for range mixed {
		types = append(types, models.PostTypeTextWithImage)
	}

	posts := make([]*models.Post, 0, numPosts)
	for i, pt := range types {
		posts = append(posts, s.factory.BuildPost(users[i%len(users)], pt))
	}
	if err := s.factory.CreatePostsBatch(posts); err != nil {
		return nil, fmt.Errorf("create posts: %w", err)
	}
	log.Printf("✓ %d posts created", len(posts))

	byID := make(map[uint]*models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	likes, comments := 0, 0
	for i, p := range posts {
		author := byID[p.UserID]
		for k := 1; k <= 1+i%4 && k < len(users); k++ {
			fan := users[(i+k)%len(users)]
			if fan.ID == author.ID {
				continue
			}
			if err := s.factory.CreateLike(fan, p); err != nil {
				return nil, fmt.Errorf("create like: %w", err)
			}
			likes++
			if k%2 == 1 {
				if _, err := s.factory.CreateComment(fan, p); err != nil {
					return nil, fmt.Errorf("create comment: %w", err)
				}
				comments++
			}
		}
	}
	log.Printf("✓ %d likes and %d comments created", likes, comments)
	return posts, nil
}

// SeedStories gives each user perUser live stories.
func (s *Seeder) SeedStories(users []*models.User, perUser int) error {
	kinds := []models.StoryMediaType{models.StoryMediaText, models.StoryMediaImage, models.StoryMediaVideo}
	created := 0
	for i, u := range users {
		for j := 0; j < perUser; j++ {
			if _, err := s.factory.CreateStory(u, kinds[(i+j)%len(kinds)], s.opts.StoryTTL); err != nil {
				return fmt.Errorf("create story: %w", err)
			}
			created++
		}
	}
	log.Printf("✓ %d stories created", created)
	return nil
}

// SeedMessages writes perPair messages between each user and the next one,
// alternating direction. Older messages are marked seen.
func (s *Seeder) SeedMessages(users []*models.User, perPair int) error {
	n := len(users)
	if n < 2 || perPair <= 0 {
		return nil
	}
	pairs := n
	if n == 2 {
		pairs = 1
	}
	for i := 0; i < pairs; i++ {
		a, b := users[i], users[(i+1)%n]
		base := time.Now().Add(-time.Duration(perPair) * time.Hour)
		for k := 0; k < perPair; k++ {
			from, to := a, b
			if k%2 == 1 {
				from, to = b, a
			}
			at := base.Add(time.Duration(k) * time.Hour)
			seen := k < perPair-2
			if _, err := s.factory.CreateMessage(from, to, func(m *models.Message) {
				m.CreatedAt = at
				m.Seen = seen
			}); err != nil {
				return fmt.Errorf("create message: %w", err)
			}
		}
	}
	log.Printf("✓ messages created for %d conversations", pairs)
	return nil
}

// computeCounts splits total by the distribution's percentages. Rounding
// leftovers go to text posts.
func computeCounts(total int, d Distribution) (text, image, mixed int) {
	sum := d.Text + d.Image + d.TextWithImage
	if sum <= 0 {
		return total, 0, 0
	}
	image = total * d.Image / sum
	mixed = total * d.TextWithImage / sum
	text = total - image - mixed
	return text, image, mixed
}
