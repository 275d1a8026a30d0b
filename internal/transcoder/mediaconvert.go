// Package transcoder submits rendition jobs to AWS Elemental MediaConvert.
package transcoder

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/mediaconvert"
	"github.com/aws/aws-sdk-go-v2/service/mediaconvert/types"
	"go.uber.org/zap"

	"github.com/vidshare/backend/internal/ladder"
)

// MetadataKeyID is the userMetadata key echoed back on job state change events.
const MetadataKeyID = "id"

// Job describes one transcoding request for a video.
type Job struct {
	VideoID string
	// Input is the source object URI, e.g. s3://ingest/<id>.
	Input string
	// Destination is the output prefix, e.g. s3://stream/<id>. Each rendition's name modifier is appended.
	Destination string
	Renditions  []ladder.Rendition
}

// Config holds MediaConvert settings.
type Config struct {
	RoleARN string
	// Queue is an optional queue ARN; the account default queue is used when empty.
	Queue string
	// Endpoint overrides the account endpoint.
	Endpoint string
	// AudioBitrate for the AAC track of every output.
	AudioBitrate int32
}

// JobCreator is the subset of the MediaConvert client used here.
type JobCreator interface {
	CreateJob(ctx context.Context, in *mediaconvert.CreateJobInput, optFns ...func(*mediaconvert.Options)) (*mediaconvert.CreateJobOutput, error)
}

// MediaConvert submits jobs built by BuildJobInput.
type MediaConvert struct {
	client JobCreator
	cfg    Config
	logger *zap.Logger
}

// NewMediaConvertClient creates a MediaConvert API client from aws config.
func NewMediaConvertClient(awsCfg aws.Config, cfg Config) *mediaconvert.Client {
	return mediaconvert.NewFromConfig(awsCfg, func(o *mediaconvert.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
}

// NewMediaConvert creates a submitter over client.
func NewMediaConvert(client JobCreator, cfg Config, logger *zap.Logger) *MediaConvert {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AudioBitrate == 0 {
		cfg.AudioBitrate = 96000
	}
	return &MediaConvert{client: client, cfg: cfg, logger: logger}
}

// Submit creates the job and returns its id.
func (m *MediaConvert) Submit(ctx context.Context, job Job) (string, error) {
	in, err := BuildJobInput(job, m.cfg)
	if err != nil {
		return "", err
	}
	out, err := m.client.CreateJob(ctx, in)
	if err != nil {
		return "", fmt.Errorf("create mediaconvert job: %w", err)
	}
	jobID := ""
	if out != nil && out.Job != nil {
		jobID = aws.ToString(out.Job.Id)
	}
	m.logger.Info("mediaconvert job submitted",
		zap.String("video_id", job.VideoID),
		zap.String("job_id", jobID),
		zap.Int("outputs", len(job.Renditions)),
	)
	return jobID, nil
}

// BuildJobInput maps a Job to a CreateJob request: one file group whose outputs match the ladder
// one to one, tagged with the video id in userMetadata.
func BuildJobInput(job Job, cfg Config) (*mediaconvert.CreateJobInput, error) {
	switch {
	case job.VideoID == "":
		return nil, errors.New("build job: empty video id")
	case len(job.Renditions) == 0:
		return nil, errors.New("build job: no renditions")
	case cfg.RoleARN == "":
		return nil, errors.New("build job: mediaconvert role not configured")
	}
	audioBitrate := cfg.AudioBitrate
	if audioBitrate == 0 {
		audioBitrate = 96000
	}

	outputs := make([]types.Output, 0, len(job.Renditions))
	for _, r := range job.Renditions {
		outputs = append(outputs, types.Output{
			NameModifier: aws.String(r.NameModifier()),
			ContainerSettings: &types.ContainerSettings{
				Container:   types.ContainerTypeMp4,
				Mp4Settings: &types.Mp4Settings{},
			},
			VideoDescription: &types.VideoDescription{
				Width:  aws.Int32(int32(r.Width)),
				Height: aws.Int32(int32(r.Height)),
				CodecSettings: &types.VideoCodecSettings{
					Codec: types.VideoCodecH264,
					H264Settings: &types.H264Settings{
						RateControlMode: types.H264RateControlModeCbr,
						Bitrate:         aws.Int32(int32(r.Bitrate)),
					},
				},
			},
			AudioDescriptions: []types.AudioDescription{{
				CodecSettings: &types.AudioCodecSettings{
					Codec: types.AudioCodecAac,
					AacSettings: &types.AacSettings{
						Bitrate:    aws.Int32(audioBitrate),
						CodingMode: types.AacCodingModeCodingMode20,
						SampleRate: aws.Int32(48000),
					},
				},
			}},
		})
	}

	in := &mediaconvert.CreateJobInput{
		Role:         aws.String(cfg.RoleARN),
		UserMetadata: map[string]string{MetadataKeyID: job.VideoID},
		Settings: &types.JobSettings{
			Inputs: []types.Input{{
				FileInput: aws.String(job.Input),
				AudioSelectors: map[string]types.AudioSelector{
					"Audio Selector 1": {DefaultSelection: types.AudioDefaultSelectionDefault},
				},
				VideoSelector:  &types.VideoSelector{},
				TimecodeSource: types.InputTimecodeSourceZerobased,
			}},
			OutputGroups: []types.OutputGroup{{
				Name: aws.String("File Group"),
				OutputGroupSettings: &types.OutputGroupSettings{
					Type: types.OutputGroupTypeFileGroupSettings,
					FileGroupSettings: &types.FileGroupSettings{
						Destination: aws.String(job.Destination),
					},
				},
				Outputs: outputs,
			}},
		},
	}
	if cfg.Queue != "" {
		in.Queue = aws.String(cfg.Queue)
	}
	return in, nil
}
