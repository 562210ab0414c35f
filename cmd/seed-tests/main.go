package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/database"
	"github.com/stemsi/exstem-quiz/internal/logger"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/repository"
	"github.com/stemsi/exstem-quiz/internal/service"
)

const demoPassword = "stemsijaya"

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	studentRepo := repository.NewStudentRepository(pool)
	testRepo := repository.NewTestRepository(pool)

	// Only HashPassword is used, so no redis client is needed.
	authService := service.NewAuthService(cfg, nil, studentRepo)

	fmt.Println("=== Seeding demo students ===")

	hash, err := authService.HashPassword(demoPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	names := [][2]string{
		{"Budi", "Santoso"}, {"Siti", "Aminah"}, {"Andi", "Pratama"}, {"Rina", "Wati"}, {"Joko", "Susilo"},
	}

	created := 0
	for i, n := range names {
		student := &model.Student{
			StudentID:    10001 + i,
			FirstName:    n[0],
			LastName:     n[1],
			Username:     fmt.Sprintf("user%d", i+1),
			PasswordHash: hash,
		}
		if err := studentRepo.Create(ctx, student); err != nil {
			if errors.Is(err, repository.ErrDuplicateStudent) {
				fmt.Printf("Student %s already exists, skipping\n", student.Username)
				continue
			}
			log.Fatal().Err(err).Str("username", student.Username).Msg("Failed to create student")
		}
		created++
	}
	fmt.Printf("Created %d/%d students (password %q)\n", created, len(names), demoPassword)

	fmt.Println("=== Seeding demo tests ===")

	for _, d := range demoTests() {
		if err := testRepo.CreateWithQuestions(ctx, &d.test, d.questions); err != nil {
			log.Fatal().Err(err).Str("title", d.test.Title).Msg("Failed to create test")
		}
		fmt.Printf("Created test %d %q with %d questions\n", d.test.ID, d.test.Title, len(d.questions))
	}

	fmt.Println("\nSeed completed!")
}

type demoTest struct {
	test      model.Test
	questions []model.Question
}

func demoTests() []demoTest {
	ten := 10
	five := 5

	return []demoTest{
		{
			test: model.Test{
				Title:       "Python Basics",
				Description: "Operators, keywords and built-in types.",
			},
			questions: []model.Question{
				{Prompt: "What is the output of print(2 ** 3)?", Choices: [4]string{"6", "8", "9", "5"}, AnswerKey: 2},
				{Prompt: "Which keyword defines a function?", Choices: [4]string{"func", "define", "def", "function"}, AnswerKey: 3},
				{Prompt: "Which type is immutable?", Choices: [4]string{"list", "dict", "tuple", "set"}, AnswerKey: 3},
				{Prompt: "What does len(\"abc\") return?", Choices: [4]string{"2", "3", "4"}, AnswerKey: 2},
			},
		},
		{
			test: model.Test{
				Title:            "Networking Fundamentals",
				Description:      "Addressing and transport protocols.",
				TimeLimitMinutes: &ten,
			},
			questions: []model.Question{
				{Prompt: "Which layer does TCP belong to?", Choices: [4]string{"Network", "Transport", "Session", "Application"}, AnswerKey: 2},
				{Prompt: "How many bits are in an IPv4 address?", Choices: [4]string{"16", "32", "64", "128"}, AnswerKey: 2},
				{Prompt: "Which port does HTTPS use by default?", Choices: [4]string{"80", "21", "443", "8080"}, AnswerKey: 3},
			},
		},
		{
			test: model.Test{
				Title:            "Quick Logic",
				Description:      "Two questions, five minutes.",
				TimeLimitMinutes: &five,
			},
			questions: []model.Question{
				{Prompt: "true AND false is", Choices: [4]string{"true", "false"}, AnswerKey: 2},
				{Prompt: "NOT false is", Choices: [4]string{"true", "false"}, AnswerKey: 1},
			},
		},
	}
}
