// Command seed populates the feed with generated users, posts, comments and likes.
package main

import (
	"context"
	"flag"
	"log"

	"socialfeed/internal/bootstrap"
	"socialfeed/internal/config"
	"socialfeed/internal/notifications"
	"socialfeed/internal/repository"
	"socialfeed/internal/seed"
	"socialfeed/internal/service"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of users to create")
	numPosts := flag.Int("posts", 100, "Number of posts to create")
	maxComments := flag.Int("comments", 5, "Maximum comments per post")
	maxLikes := flag.Int("likes", 10, "Maximum likes per post")
	seedValue := flag.Int64("seed", 0, "Random seed (0 for random)")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	log.Printf("Target: %d users, %d posts, clean=%v\n", *numUsers, *numPosts, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	rt, err := bootstrap.InitRuntime(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer func() { _ = rt.Close() }()

	if *shouldClean {
		if err := seed.ClearAll(rt.DB); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	// Nothing subscribes in this process; the broker just absorbs events.
	broker := notifications.NewBroker(cfg.SubscriberBacklog)
	defer broker.Close()

	feed := service.NewFeedService(
		repository.NewUserRepository(rt.DB),
		repository.NewPostRepository(rt.DB, rt.Cache),
		broker,
	)

	sum, err := seed.NewSeeder(feed, seed.Options{
		NumUsers:    *numUsers,
		NumPosts:    *numPosts,
		MaxComments: *maxComments,
		MaxLikes:    *maxLikes,
		Seed:        *seedValue,
	}).Run(context.Background())
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %d users, %d posts, %d comments, %d likes", sum.Users, sum.Posts, sum.Comments, sum.Likes)
}
