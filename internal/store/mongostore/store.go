// Package mongostore keeps accounts and content records in MongoDB
// collections that mirror the WordPress users and posts tables.
package mongostore

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"authormigrate/internal/author"
	"authormigrate/internal/errors"
	"authormigrate/internal/filter"
)

const (
	// MaxPoolSize caps the driver connection pool.
	MaxPoolSize = 20
	// IDField is the document key holding the numeric ID.
	IDField = "_id"

	UsersCollection = "users"
	PostsCollection = "posts"
)

// Options configures a Store.
type Options struct {
	DSN            string
	Timeout        time.Duration
	ValidPostTypes []string
}

// Store implements the account lookup, record source and author updater on
// top of two collections.
type Store struct {
	client     *mongo.Client
	users      *mongo.Collection
	posts      *mongo.Collection
	validTypes map[string]bool
}

// Open connects to the server in opts.DSN and selects the database named in
// its path.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if !strings.HasPrefix(opts.DSN, "mongodb://") && !strings.HasPrefix(opts.DSN, "mongodb+srv://") {
		return nil, errors.NewConfigError("invalid DSN format, expected 'mongodb://' or 'mongodb+srv://'", nil)
	}

	databaseName, err := DatabaseName(opts.DSN)
	if err != nil {
		return nil, err
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	clientOptions := options.Client().ApplyURI(opts.DSN)
	clientOptions.SetMaxPoolSize(MaxPoolSize)
	clientOptions.SetReadPreference(readpref.PrimaryPreferred())

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, errors.NewStoreError(databaseName, "failed to connect to MongoDB", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.NewStoreError(databaseName, "failed to ping MongoDB", err)
	}

	return New(client, client.Database(databaseName), opts.ValidPostTypes), nil
}

// New wraps an existing client and database.
func New(client *mongo.Client, db *mongo.Database, validPostTypes []string) *Store {
	store := &Store{
		client: client,
		users:  db.Collection(UsersCollection),
		posts:  db.Collection(PostsCollection),
	}

	if len(validPostTypes) > 0 {
		store.validTypes = make(map[string]bool, len(validPostTypes))
		for _, name := range validPostTypes {
			store.validTypes[name] = true
		}
	}

	return store
}

// DatabaseName extracts the database name from a MongoDB DSN path.
func DatabaseName(dsn string) (string, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", errors.NewConfigError("invalid MongoDB DSN", err)
	}

	name := strings.TrimPrefix(parsed.Path, "/")
	if name == "" {
		return "", errors.NewConfigError("MongoDB DSN must name a database, e.g. mongodb://host:27017/wordpress", nil)
	}
	return name, nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	if s.client != nil {
		return s.client.Disconnect(ctx)
	}
	return nil
}

func (s *Store) AccountByID(ctx context.Context, id int64) (author.Account, bool, error) {
	return s.findAccount(ctx, bson.M{IDField: id})
}

func (s *Store) AccountByLogin(ctx context.Context, login string) (author.Account, bool, error) {
	return s.findAccount(ctx, bson.M{"user_login": login})
}

func (s *Store) AccountByEmail(ctx context.Context, email string) (author.Account, bool, error) {
	if email == "" {
		return author.Account{}, false, nil
	}
	pattern := "^" + regexp.QuoteMeta(email) + "$"
	return s.findAccount(ctx, bson.M{"user_email": bson.M{"$regex": pattern, "$options": "i"}})
}

func (s *Store) findAccount(ctx context.Context, query bson.M) (author.Account, bool, error) {
	var account author.Account

	err := s.users.FindOne(ctx, query, options.FindOne().SetSort(bson.D{{Key: IDField, Value: 1}})).Decode(&account)
	if err == mongo.ErrNoDocuments {
		return author.Account{}, false, nil
	}
	if err != nil {
		return author.Account{}, false, errors.NewStoreError(UsersCollection, "account lookup failed", err)
	}
	return account, true, nil
}

// Records returns the posts matching f ordered by ID.
func (s *Store) Records(ctx context.Context, f filter.TypeFilter) ([]filter.Record, error) {
	query := bson.M{}
	if !f.Any() {
		query["post_type"] = bson.M{"$in": f.Types()}
	}

	cursor, err := s.posts.Find(ctx, query, options.Find().SetSort(bson.D{{Key: IDField, Value: 1}}))
	if err != nil {
		return nil, errors.NewStoreError(PostsCollection, "record query failed", err)
	}
	defer cursor.Close(ctx)

	var records []filter.Record
	if err := cursor.All(ctx, &records); err != nil {
		return nil, errors.NewStoreError(PostsCollection, "record decode failed", err)
	}
	return records, nil
}

// TypeExists checks the configured type list, or the posts collection when
// none was configured.
func (s *Store) TypeExists(ctx context.Context, name string) (bool, error) {
	if s.validTypes != nil {
		return s.validTypes[name], nil
	}

	count, err := s.posts.CountDocuments(ctx, bson.M{"post_type": name}, options.Count().SetLimit(1))
	if err != nil {
		return false, errors.NewStoreError(PostsCollection, "content type lookup failed", err)
	}
	return count > 0, nil
}

// UpdateAuthor sets post_author on one post. Matching no document is a failure.
func (s *Store) UpdateAuthor(ctx context.Context, recordID, authorID int64) error {
	ref := fmt.Sprintf("%s record %d", PostsCollection, recordID)

	res, err := s.posts.UpdateOne(ctx, bson.M{IDField: recordID}, bson.M{"$set": bson.M{"post_author": authorID}})
	if err != nil {
		return errors.NewStoreError(ref, "update failed", err)
	}
	if res.MatchedCount == 0 {
		return errors.NewStoreError(ref, "record not found", nil)
	}
	return nil
}
