package store

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"divrag/internal/port"
)

// QdrantVectorStore implements port.VectorStore against a Qdrant
// collection over gRPC.
type QdrantVectorStore struct {
	conn       *grpc.ClientConn
	points     pb.PointsClient
	collection string
}

func NewQdrantVectorStore(host string, grpcPort int, collection string) (*QdrantVectorStore, error) {
	addr := fmt.Sprintf("%s:%d", host, grpcPort)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return &QdrantVectorStore{
		conn:       conn,
		points:     pb.NewPointsClient(conn),
		collection: collection,
	}, nil
}

func (s *QdrantVectorStore) Upsert(ctx context.Context, items []port.VectorItem) error {
	points := make([]*pb.PointStruct, len(items))
	for i, item := range items {
		payload := map[string]*pb.Value{
			"content": {Kind: &pb.Value_StringValue{StringValue: item.Content}},
		}
		for k, v := range item.Metadata {
			payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}}
		}
		points[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: item.ID}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: item.Vector}}},
			Payload: payload,
		}
	}

	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	return err
}

func (s *QdrantVectorStore) Search(ctx context.Context, query []float32, k int, filter *port.Filter) ([]port.VectorResult, error) {
	req := &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         query,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if filter != nil && len(filter.Metadata) > 0 {
		req.Filter = metadataFilter(filter.Metadata)
	}

	resp, err := s.points.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	results := make([]port.VectorResult, len(resp.Result))
	for i, pt := range resp.Result {
		content := ""
		meta := make(map[string]string)
		for key, v := range pt.Payload {
			if key == "content" {
				content = v.GetStringValue()
			} else {
				meta[key] = v.GetStringValue()
			}
		}
		results[i] = port.VectorResult{
			ID:       pt.Id.GetUuid(),
			Score:    float64(pt.Score),
			Content:  content,
			Metadata: meta,
		}
	}
	return results, nil
}

func metadataFilter(metadata map[string]string) *pb.Filter {
	conditions := make([]*pb.Condition, 0, len(metadata))
	for k, v := range metadata {
		conditions = append(conditions, &pb.Condition{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key:   k,
					Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: v}},
				},
			},
		})
	}
	return &pb.Filter{Must: conditions}
}

func (s *QdrantVectorStore) Delete(ctx context.Context, ids []string) error {
	pointIDs := make([]*pb.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}
	}

	_, err := s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: s.collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: pointIDs},
			},
		},
	})
	return err
}

func (s *QdrantVectorStore) Count(ctx context.Context) (int, error) {
	exact := true
	resp, err := s.points.Count(ctx, &pb.CountPoints{
		CollectionName: s.collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, err
	}
	return int(resp.Result.Count), nil
}

func (s *QdrantVectorStore) Close() error {
	return s.conn.Close()
}

var _ port.VectorStore = (*QdrantVectorStore)(nil)
