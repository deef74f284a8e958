/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	applog "godesigner/internal/log"
)

// S3API is the subset of the S3 client the gateway calls.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Gateway stores each record as object <prefix>/<store>/<escaped key>.json.
type S3Gateway struct {
	client S3API
	bucket string
	prefix string
	log    *slog.Logger
}

// NewS3Gateway wraps an existing client.
func NewS3Gateway(client S3API, bucket, prefix string) *S3Gateway {
	return &S3Gateway{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		log:    applog.WithComponent("storage").With(slog.String("driver", "s3"), slog.String("bucket", bucket)),
	}
}

// OpenS3 loads the default AWS config. secret, when set, is "ACCESS_KEY:SECRET_KEY"
// and replaces the default credential chain.
func OpenS3(ctx context.Context, bucket, prefix, region, secret string) (*S3Gateway, error) {
	if bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if secret != "" {
		ak, sk, ok := strings.Cut(secret, ":")
		if !ok {
			return nil, errors.New("s3 secret must be ACCESS_KEY:SECRET_KEY")
		}
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(ak, sk, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3Gateway(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func (g *S3Gateway) storePrefix(store string) string {
	return path.Join(g.prefix, url.PathEscape(store)) + "/"
}

func (g *S3Gateway) key(store, key string) (string, error) {
	if err := checkArgs(store, key); err != nil {
		return "", err
	}
	return g.storePrefix(store) + url.PathEscape(key) + ".json", nil
}

func (g *S3Gateway) Put(ctx context.Context, store, key string, value []byte) error {
	k, err := g.key(store, key)
	if err != nil {
		return err
	}
	if err := checkJSON(value); err != nil {
		return err
	}
	_, err = g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(k),
		Body:        bytes.NewReader(value),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", k, err)
	}
	return nil
}

func (g *S3Gateway) Get(ctx context.Context, store, key string) ([]byte, error) {
	k, err := g.key(store, key)
	if err != nil {
		return nil, err
	}
	return g.read(ctx, k)
}

func (g *S3Gateway) read(ctx context.Context, k string) ([]byte, error) {
	resp, err := g.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(g.bucket), Key: aws.String(k)})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%s: %w", k, ErrNotFound)
		}
		return nil, fmt.Errorf("get %s: %w", k, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", k, err)
	}
	return data, nil
}

func (g *S3Gateway) Delete(ctx context.Context, store, key string) error {
	k, err := g.key(store, key)
	if err != nil {
		return err
	}
	if _, err := g.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(g.bucket), Key: aws.String(k)}); err != nil {
		return fmt.Errorf("delete %s: %w", k, err)
	}
	return nil
}

// ListByIndex pages through the store prefix and filters on the decoded
// documents; S3 has no secondary indexes.
func (g *S3Gateway) ListByIndex(ctx context.Context, store, indexName, indexValue string) ([][]byte, error) {
	prefix := g.storePrefix(store)
	var keys []string
	var token *string
	for {
		out, err := g.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(g.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, obj := range out.Contents {
			if obj.Key != nil && strings.HasSuffix(*obj.Key, ".json") {
				keys = append(keys, *obj.Key)
			}
		}
		if out.IsTruncated == nil || !*out.IsTruncated || out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}
	sort.Strings(keys)
	var res [][]byte
	for _, k := range keys {
		data, err := g.read(ctx, k)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			g.log.Warn("skip unreadable object", "key", k, applog.Err(err))
			continue
		}
		if got, ok := indexValueOf(data, indexName); ok && got == indexValue {
			res = append(res, data)
		}
	}
	return res, nil
}

func (g *S3Gateway) Close() error { return nil }
