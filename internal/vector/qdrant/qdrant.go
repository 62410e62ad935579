// Package qdrant implements vector.Index against a Qdrant instance over
// gRPC.
package qdrant

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/gapscan/gapscan/internal/vector"
)

// Index implements vector.Index using Qdrant.
type Index struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
}

// New connects to a Qdrant instance.
func New(ctx context.Context, host string, port int) (*Index, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return &Index{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
	}, nil
}

// Reset drops the collection if present, then creates it fresh. Qdrant
// errors on deleting a collection that does not exist, so existence is
// checked first; a repeat Reset therefore always succeeds.
func (x *Index) Reset(ctx context.Context, name string, dim uint64) error {
	listing, err := x.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("qdrant list collections: %w", err)
	}
	for _, c := range listing.GetCollections() {
		if c.GetName() == name {
			if _, err := x.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: name}); err != nil {
				return fmt.Errorf("qdrant delete collection %q: %w", name, err)
			}
			break
		}
	}

	_, err = x.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     dim,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant create collection %q: %w", name, err)
	}
	return nil
}

func (x *Index) Upsert(ctx context.Context, name string, docs []vector.Document) error {
	points := make([]*pb.PointStruct, len(docs))
	for i, d := range docs {
		payload := map[string]*pb.Value{
			"content": {Kind: &pb.Value_StringValue{StringValue: d.Content}},
		}
		for k, v := range d.Metadata {
			payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}}
		}
		points[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: d.ID}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: d.Vector}}},
			Payload: payload,
		}
	}

	_, err := x.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: name,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", mapNotFound(err, name))
	}
	return nil
}

func (x *Index) Search(ctx context.Context, name string, vec []float32, topK int) ([]vector.SearchResult, error) {
	resp, err := x.points.Search(ctx, &pb.SearchPoints{
		CollectionName: name,
		Vector:         vec,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", mapNotFound(err, name))
	}

	results := make([]vector.SearchResult, len(resp.Result))
	for i, pt := range resp.Result {
		content := ""
		meta := make(map[string]string)
		for k, v := range pt.Payload {
			if k == "content" {
				content = v.GetStringValue()
			} else {
				meta[k] = v.GetStringValue()
			}
		}
		results[i] = vector.SearchResult{
			ID:       pt.Id.GetUuid(),
			Score:    pt.Score,
			Content:  content,
			Metadata: meta,
		}
	}
	return results, nil
}

func (x *Index) Count(ctx context.Context, name string) (uint64, error) {
	exact := true
	resp, err := x.points.Count(ctx, &pb.CountPoints{
		CollectionName: name,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant count: %w", mapNotFound(err, name))
	}
	return resp.GetResult().GetCount(), nil
}

func (x *Index) Close() error {
	return x.conn.Close()
}

// mapNotFound translates Qdrant's gRPC NotFound status into the index
// contract's sentinel so callers can errors.Is on it.
func mapNotFound(err error, name string) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%q: %w", name, vector.ErrCollectionNotFound)
	}
	return err
}

var _ vector.Index = (*Index)(nil)
