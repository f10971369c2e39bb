package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"gamevault/internal/auth"
	"gamevault/internal/library"
	"gamevault/pkg/models"
)

// ObjectAPI is the part of *s3.Client the collection uses.
type ObjectAPI interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Collection keeps each user's library as one JSON document per game
// under {prefix}/users/{uid}/games/{gameId}.json.
type S3Collection struct {
	api    ObjectAPI
	bucket string
	prefix string
	log    *zap.Logger
}

func NewS3Collection(api ObjectAPI, bucket, prefix string, log *zap.Logger) *S3Collection {
	if log == nil {
		log = zap.NewNop()
	}
	return &S3Collection{
		api:    api,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		log:    log.With(zap.String("component", "cloud-s3")),
	}
}

// NewS3Client loads the default AWS credential chain. A non-empty endpoint
// switches to path-style addressing for MinIO and similar.
func NewS3Client(ctx context.Context, region, endpoint string) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var opts []func(*s3.Options)
	if endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(cfg, opts...), nil
}

func (c *S3Collection) ForUser(p auth.Principal) library.Store {
	return &s3Store{c: c, userID: p.UserID}
}

func (c *S3Collection) userPrefix(userID string) string {
	return path.Join(c.prefix, "users", userID, "games") + "/"
}

func (c *S3Collection) key(userID string, gameID int64) string {
	return c.userPrefix(userID) + strconv.FormatInt(gameID, 10) + ".json"
}

type s3Store struct {
	c      *S3Collection
	userID string
}

// Put merges g over the stored document, if any.
func (s *s3Store) Put(ctx context.Context, g models.OwnedGame) error {
	if s.userID == "" {
		return library.ErrNotAuthenticated
	}
	key := s.c.key(s.userID, g.GameID)

	base, err := s.get(ctx, key)
	if err != nil {
		return err
	}
	merged := g.MergeInto(base)
	if merged.Status == "" {
		merged.Status = models.PlayStateUnspecified
	}

	b, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encode game %d: %w", g.GameID, err)
	}
	_, err = s.c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(b),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

func (s *s3Store) All(ctx context.Context) ([]models.OwnedGame, error) {
	if s.userID == "" {
		return nil, library.ErrNotAuthenticated
	}

	var keys []string
	pager := s3.NewListObjectsV2Paginator(s.c.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.c.bucket),
		Prefix: aws.String(s.c.userPrefix(s.userID)),
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if k := aws.ToString(obj.Key); strings.HasSuffix(k, ".json") {
				keys = append(keys, k)
			}
		}
	}

	out := make([]models.OwnedGame, 0, len(keys))
	for _, k := range keys {
		g, err := s.get(ctx, k)
		if err != nil {
			return nil, err
		}
		if g.GameID == 0 {
			continue // deleted between list and get
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameID < out[j].GameID })
	return out, nil
}

func (s *s3Store) Delete(ctx context.Context, gameID int64) error {
	if s.userID == "" {
		return library.ErrNotAuthenticated
	}
	_, err := s.c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.c.bucket),
		Key:    aws.String(s.c.key(s.userID, gameID)),
	})
	if err != nil {
		return fmt.Errorf("s3 delete object: %w", err)
	}
	return nil
}

// get returns the zero game when key does not exist.
func (s *s3Store) get(ctx context.Context, key string) (models.OwnedGame, error) {
	var g models.OwnedGame
	out, err := s.c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return g, nil
		}
		return g, fmt.Errorf("s3 get object: %w", err)
	}
	defer out.Body.Close()

	if err := json.NewDecoder(out.Body).Decode(&g); err != nil {
		s.c.log.Warn("undecodable library document", zap.String("key", key), zap.Error(err))
		return models.OwnedGame{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return g, nil
}
