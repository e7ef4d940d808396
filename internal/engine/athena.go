// Package engine adapts Amazon Athena to the domain.QueryEngine interface.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"

	"log-manager/internal/domain"
)

// AthenaConfig holds the client settings for Athena.
type AthenaConfig struct {
	Region string
	// KeyID and Secret select static credentials. When empty the default
	// AWS credential chain is used.
	KeyID  string
	Secret string
}

// athenaAPI is the subset of *athena.Client used by AthenaEngine.
type athenaAPI interface {
	StartQueryExecution(ctx context.Context, in *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, in *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
	StopQueryExecution(ctx context.Context, in *athena.StopQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StopQueryExecutionOutput, error)
}

// AthenaEngine implements domain.QueryEngine on Athena.
type AthenaEngine struct {
	client athenaAPI
}

var _ domain.QueryEngine = (*AthenaEngine)(nil)

// NewAthenaEngine creates an AthenaEngine from cfg.
func NewAthenaEngine(ctx context.Context, cfg AthenaConfig) (*AthenaEngine, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.KeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.KeyID, cfg.Secret, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &AthenaEngine{client: athena.NewFromConfig(awsCfg)}, nil
}

// StartQuery implements domain.QueryEngine.
func (e *AthenaEngine) StartQuery(ctx context.Context, in domain.StartQueryInput) (string, error) {
	req := &athena.StartQueryExecutionInput{
		QueryString: aws.String(in.SQL),
	}
	if in.IdempotencyToken != "" {
		req.ClientRequestToken = aws.String(in.IdempotencyToken)
	}
	if in.Database != "" {
		req.QueryExecutionContext = &types.QueryExecutionContext{Database: aws.String(in.Database)}
	}
	if in.OutputLocation != "" {
		req.ResultConfiguration = &types.ResultConfiguration{OutputLocation: aws.String(in.OutputLocation)}
	}
	if in.WorkGroup != "" {
		req.WorkGroup = aws.String(in.WorkGroup)
	}

	out, err := e.client.StartQueryExecution(ctx, req)
	if err != nil {
		return "", fmt.Errorf("start query execution: %w", err)
	}
	id := aws.ToString(out.QueryExecutionId)
	if id == "" {
		return "", errors.New("start query execution: no execution id returned")
	}
	return id, nil
}

// GetQueryStatus implements domain.QueryEngine.
func (e *AthenaEngine) GetQueryStatus(ctx context.Context, executionID string) (*domain.EngineStatus, error) {
	out, err := e.client.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{
		QueryExecutionId: aws.String(executionID),
	})
	if err != nil {
		var ire *types.InvalidRequestException
		if errors.As(err, &ire) && strings.Contains(strings.ToLower(aws.ToString(ire.Message)), "not found") {
			return nil, domain.ErrNotFound("query execution %s not found", executionID)
		}
		return nil, fmt.Errorf("get query execution %s: %w", executionID, err)
	}
	if out.QueryExecution == nil || out.QueryExecution.Status == nil {
		return nil, fmt.Errorf("get query execution %s: response has no status", executionID)
	}
	return toEngineStatus(out.QueryExecution), nil
}

// StopQuery implements domain.QueryEngine.
func (e *AthenaEngine) StopQuery(ctx context.Context, executionID string) error {
	_, err := e.client.StopQueryExecution(ctx, &athena.StopQueryExecutionInput{
		QueryExecutionId: aws.String(executionID),
	})
	if err != nil {
		return fmt.Errorf("stop query execution %s: %w", executionID, err)
	}
	return nil
}

func toEngineStatus(qe *types.QueryExecution) *domain.EngineStatus {
	st := &domain.EngineStatus{}
	switch qe.Status.State {
	case types.QueryExecutionStateQueued:
		st.State = domain.ExecutionSubmitted
	case types.QueryExecutionStateRunning:
		st.State = domain.ExecutionRunning
	case types.QueryExecutionStateSucceeded:
		st.State = domain.ExecutionSucceeded
		st.Stats = toStats(qe.Statistics)
	case types.QueryExecutionStateFailed:
		st.State = domain.ExecutionFailed
		st.FailureReason = failureReason(qe.Status)
	case types.QueryExecutionStateCancelled:
		st.State = domain.ExecutionCancelled
		st.FailureReason = failureReason(qe.Status)
	default:
		st.State = domain.ExecutionRunning
	}
	return st
}

func toStats(s *types.QueryExecutionStatistics) *domain.ExecutionStats {
	if s == nil {
		return &domain.ExecutionStats{}
	}
	stats := &domain.ExecutionStats{BytesScanned: aws.ToInt64(s.DataScannedInBytes)}
	millis := aws.ToInt64(s.TotalExecutionTimeInMillis)
	if millis == 0 {
		millis = aws.ToInt64(s.EngineExecutionTimeInMillis)
	}
	stats.ElapsedSeconds = float64(millis) / 1000
	return stats
}

func failureReason(s *types.QueryExecutionStatus) string {
	if reason := aws.ToString(s.StateChangeReason); reason != "" {
		return reason
	}
	if s.AthenaError != nil {
		return aws.ToString(s.AthenaError.ErrorMessage)
	}
	return ""
}
