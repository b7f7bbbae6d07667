package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"

	"github.com/go-marketplace-auth/internal/application/challenge"
	"github.com/go-marketplace-auth/internal/application/identity"
	"github.com/go-marketplace-auth/internal/config"
	"github.com/go-marketplace-auth/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-marketplace-auth/internal/infrastructure/jwt"
	redisstore "github.com/go-marketplace-auth/internal/infrastructure/redis"
	"github.com/go-marketplace-auth/internal/infrastructure/smtp"
	"github.com/go-marketplace-auth/internal/infrastructure/sns"
	"github.com/go-marketplace-auth/internal/pkg/cipher"
	transporthttp "github.com/go-marketplace-auth/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()
	if cfg.IsProduction() {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	}

	ctx := context.Background()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		log.Fatalf("jwt provider: %v", err)
	}

	challengeCipher, err := newCipher(cfg)
	if err != nil {
		log.Fatalf("challenge cipher: %v", err)
	}

	challenges, err := newChallengeStore(ctx, cfg, dynamoClient)
	if err != nil {
		log.Fatalf("challenge store: %v", err)
	}

	mailer, err := newMailer(ctx, cfg)
	if err != nil {
		log.Fatalf("mailer: %v", err)
	}

	deps := &transporthttp.Deps{
		Users:       dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users),
		Sessions:    dynamo.NewSessionRepo(dynamoClient, cfg.DynamoTables.Sessions),
		ResetTokens: dynamo.NewResetTokenRepo(dynamoClient, cfg.DynamoTables.ResetTokens),
		Tokens:      jwtProvider,
		Challenges:  challenges,
		Cipher:      challengeCipher,
		Mailer:      mailer,
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s, challenges=%s, mail=%s)", cfg.AppPort, cfg.AppEnv, cfg.ChallengeStore, cfg.MailTransport)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}

// newCipher loads the configured key. Outside production a missing key is
// replaced by a random one, which invalidates outstanding codes on restart.
func newCipher(cfg *config.Config) (*cipher.ChallengeCipher, error) {
	key := cfg.ChallengeCipherKey
	if key == "" {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("CHALLENGE_CIPHER_KEY is required in production")
		}
		generated, err := cipher.GenerateKey()
		if err != nil {
			return nil, err
		}
		slog.Warn("CHALLENGE_CIPHER_KEY not set, using a random key for this process")
		key = generated
	}
	return cipher.NewFromHex(key)
}

func newChallengeStore(ctx context.Context, cfg *config.Config, dynamoClient *dynamodb.Client) (challenge.Store, error) {
	switch cfg.ChallengeStore {
	case "dynamo":
		return dynamo.NewChallengeRepo(dynamoClient, cfg.DynamoTables.Challenges), nil
	case "redis":
		client, err := redisstore.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return redisstore.NewChallengeStore(client, cfg.RedisPrefix), nil
	default:
		return nil, fmt.Errorf("unknown CHALLENGE_STORE %q", cfg.ChallengeStore)
	}
}

func newMailer(ctx context.Context, cfg *config.Config) (identity.Mailer, error) {
	switch cfg.MailTransport {
	case "smtp":
		return smtp.NewMailer(cfg), nil
	case "sns":
		p, err := sns.NewMailPublisher(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown MAIL_TRANSPORT %q", cfg.MailTransport)
	}
}
