// Command seed populates the database with demo users and posts for local
// development.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"socialdb/internal/config"
	"socialdb/internal/database"
	"socialdb/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	users := flag.Int("users", 5, "number of demo users to create")
	postsPerUser := flag.Int("posts", 8, "max posts per user")
	password := flag.String("password", "password", "password for all demo users")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash demo password: %v", err)
	}

	for i := 0; i < *users; i++ {
		user := &models.User{
			Username: fmt.Sprintf("%s%d", gofakeit.Username(), i),
			Email:    gofakeit.Email(),
			Password: string(hash),
		}
		if err := db.Create(user).Error; err != nil {
			log.Printf("skipping user %s: %v", user.Username, err)
			continue
		}

		n := rand.Intn(*postsPerUser) + 1
		for j := 0; j < n; j++ {
			post := &models.Post{
				UserID: user.ID,
				Text:   gofakeit.Sentence(rand.Intn(12) + 3),
			}
			if err := db.Create(post).Error; err != nil {
				log.Printf("skipping post for %s: %v", user.Username, err)
			}
		}
		log.Printf("created user %s with %d posts", user.Username, n)
	}
}
