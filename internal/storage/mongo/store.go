package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/magabrotheeeer/nextgig-subscriptions/internal/models"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/storage"
)

const (
	usersCollection         = "users"
	subscriptionsCollection = "subscriptions"
	eventsCollection        = "subscription_events"
	testersCollection       = "testers"

	currentSubscriptionIdx = "one_current_per_user"
	userEmailIdx           = "unique_email"
)

// Store хранилище на MongoDB.
type Store struct {
	repo
	client *mongo.Client
}

var _ storage.Store = (*Store)(nil)

// repo реализует storage.Repository. Внутри транзакции ctx несёт сессию.
type repo struct {
	users         *mongo.Collection
	subscriptions *mongo.Collection
	events        *mongo.Collection
	testers       *mongo.Collection
}

// New создаёт хранилище поверх подключённого клиента и создаёт индексы.
func New(ctx context.Context, client *mongo.Client, database string) (*Store, error) {
	const op = "storage.mongo.New"

	db := client.Database(database)
	s := &Store{
		client: client,
		repo: repo{
			users:         db.Collection(usersCollection),
			subscriptions: db.Collection(subscriptionsCollection),
			events:        db.Collection(eventsCollection),
			testers:       db.Collection(testersCollection),
		},
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.subscriptions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().
				SetName(currentSubscriptionIdx).
				SetUnique(true).
				SetPartialFilterExpression(bson.D{
					{Key: "status", Value: bson.D{{Key: "$in", Value: storage.StatusStrings(models.CurrentStatuses)}}},
				}),
		},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "cancelledAt", Value: -1}}},
		{Keys: bson.D{{Key: "deviceFingerprint", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	if err != nil {
		return err
	}
	_, err = s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}},
		Options: options.Index().
			SetName(userEmailIdx).
			SetUnique(true).
			SetPartialFilterExpression(bson.D{{Key: "email", Value: bson.D{{Key: "$gt", Value: ""}}}}),
	})
	if err != nil {
		return err
	}
	_, err = s.events.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: 1}},
	})
	return err
}

// InTx выполняет fn в транзакции MongoDB.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, repo storage.Repository) error) error {
	const op = "storage.mongo.InTx"

	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(txCtx context.Context) (any, error) {
		return nil, fn(txCtx, &s.repo)
	})
	return err
}

// Ping проверяет доступность сервера.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close отключает клиента.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// AddTester добавляет e-mail в список тестировщиков.
func (s *Store) AddTester(ctx context.Context, email string) error {
	_, err := s.testers.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: strings.ToLower(email)}},
		bson.D{{Key: "_id", Value: strings.ToLower(email)}},
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("storage.mongo.AddTester: %w", err)
	}
	return nil
}

// Events возвращает журнал событий пользователя в порядке записи.
func (s *Store) Events(ctx context.Context, userID string) ([]models.SubscriptionEvent, error) {
	cur, err := s.events.Find(ctx, bson.D{{Key: "userId", Value: userID}},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("storage.mongo.Events: %w", err)
	}
	var out []models.SubscriptionEvent
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("storage.mongo.Events: %w", err)
	}
	return out, nil
}

func (r *repo) GetUser(ctx context.Context, userID string) (*models.User, error) {
	const op = "storage.mongo.GetUser"
	var u models.User
	err := r.users.FindOne(ctx, bson.D{{Key: "_id", Value: userID}}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &u, nil
}

func (r *repo) SaveUser(ctx context.Context, u *models.User) error {
	const op = "storage.mongo.SaveUser"
	if u.ID == "" {
		return fmt.Errorf("%s: empty user id", op)
	}
	doc := *u
	doc.Email = models.NormalizeEmail(doc.Email)
	_, err := r.users.ReplaceOne(ctx, bson.D{{Key: "_id", Value: u.ID}}, doc, options.Replace().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w", op, models.ErrEmailTaken)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *repo) GetSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	const op = "storage.mongo.GetSubscription"
	var sub models.Subscription
	err := r.subscriptions.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&sub)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrSubscriptionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &sub, nil
}

func (r *repo) SaveSubscription(ctx context.Context, sub *models.Subscription) error {
	const op = "storage.mongo.SaveSubscription"
	if sub.ID == "" {
		return fmt.Errorf("%s: empty subscription id", op)
	}
	_, err := r.subscriptions.ReplaceOne(ctx, bson.D{{Key: "_id", Value: sub.ID}}, sub, options.Replace().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w", op, models.ErrActiveSubscriptionExists)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *repo) ListSubscriptions(ctx context.Context, userID string, statuses ...models.Status) ([]*models.Subscription, error) {
	return r.find(ctx, "storage.mongo.ListSubscriptions", withStatuses(bson.D{{Key: "userId", Value: userID}}, statuses))
}

func (r *repo) FindByFingerprint(ctx context.Context, fingerprint string, statuses ...models.Status) ([]*models.Subscription, error) {
	if fingerprint == "" {
		return nil, nil
	}
	return r.find(ctx, "storage.mongo.FindByFingerprint", withStatuses(bson.D{{Key: "deviceFingerprint", Value: fingerprint}}, statuses))
}

func (r *repo) find(ctx context.Context, op string, filter bson.D) ([]*models.Subscription, error) {
	cur, err := r.subscriptions.Find(ctx, filter, options.Find().SetSort(bson.D{
		{Key: "cancelledAt", Value: -1},
		{Key: "startDate", Value: -1},
		{Key: "_id", Value: 1},
	}))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var out []*models.Subscription
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (r *repo) AppendEvent(ctx context.Context, event models.SubscriptionEvent) error {
	if _, err := r.events.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("storage.mongo.AppendEvent: %w", err)
	}
	return nil
}

func (r *repo) IsTester(ctx context.Context, email string) (bool, error) {
	if email == "" {
		return false, nil
	}
	n, err := r.testers.CountDocuments(ctx, bson.D{{Key: "_id", Value: strings.ToLower(email)}})
	if err != nil {
		return false, fmt.Errorf("storage.mongo.IsTester: %w", err)
	}
	return n > 0, nil
}

func withStatuses(filter bson.D, statuses []models.Status) bson.D {
	if len(statuses) == 0 {
		return filter
	}
	return append(filter, bson.E{Key: "status", Value: bson.D{{Key: "$in", Value: storage.StatusStrings(statuses)}}})
}
