package submissions

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bluecarbon/internal/credits"
	"bluecarbon/internal/imaging"
	"bluecarbon/internal/metrics"
	"bluecarbon/internal/models"
	"bluecarbon/internal/objectstore"
	"bluecarbon/internal/validation"
)

// MaxImages is the number of images accepted per submission.
const MaxImages = 5

const (
	defaultPlatform   = "Android"
	defaultAppVersion = "1.0.0"
	defaultDevice     = "Unknown"
	createdMessage    = "Submission created successfully"
)

// Upload is one image file from a multipart submission.
type Upload struct {
	Name string
	Size int64
	Data []byte
}

// CreateRequest carries the raw form fields of a submission.
type CreateRequest struct {
	UserID      string
	Type        string
	Latitude    string
	Longitude   string
	Area        string
	Description string
	DeviceInfo  string
	AppVersion  string
	Images      []Upload
}

type createInput struct {
	userID string
	typ    string
	lat    float64
	lng    float64
	area   float64
}

func (r *CreateRequest) validate() (*createInput, error) {
	verr := &ValidationError{}
	in := &createInput{
		userID: strings.TrimSpace(r.UserID),
		typ:    credits.NormalizeType(r.Type),
	}

	required := []struct {
		name  string
		value string
	}{
		{"userId", in.userID},
		{"type", in.typ},
		{"latitude", strings.TrimSpace(r.Latitude)},
		{"longitude", strings.TrimSpace(r.Longitude)},
		{"area", strings.TrimSpace(r.Area)},
	}
	for _, f := range required {
		if f.value == "" {
			verr.Missing = append(verr.Missing, f.name)
		}
	}
	if len(verr.Missing) > 0 {
		return nil, verr
	}

	var ok bool
	if !validation.ValidateUserID(in.userID) {
		verr.Invalid = append(verr.Invalid, "userId")
	}
	if !validation.ValidateEcosystemType(in.typ) {
		verr.Invalid = append(verr.Invalid, "type")
	}
	if in.lat, ok = validation.ParseLatitude(r.Latitude); !ok {
		verr.Invalid = append(verr.Invalid, "latitude")
	}
	if in.lng, ok = validation.ParseLongitude(r.Longitude); !ok {
		verr.Invalid = append(verr.Invalid, "longitude")
	}
	if in.area, ok = validation.ParseArea(r.Area); !ok {
		verr.Invalid = append(verr.Invalid, "area")
	}
	if len(r.Images) > MaxImages {
		verr.Invalid = append(verr.Invalid, "images")
	} else {
		for _, img := range r.Images {
			if img.Size > imaging.MaxUploadSize || int64(len(img.Data)) > imaging.MaxUploadSize {
				verr.Invalid = append(verr.Invalid, "images")
				break
			}
		}
	}
	if !verr.empty() {
		return nil, verr
	}
	return in, nil
}

// Create validates a submission, stores its images and persists it as pending.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*models.SubmitResponse, error) {
	in, err := req.validate()
	if err != nil {
		return nil, err
	}

	sub := &models.Submission{
		ID:     uuid.New(),
		UserID: in.userID,
		Type:   in.typ,
		Location: models.Location{
			Lat: in.lat,
			Lng: in.lng,
		},
		Area:             in.area,
		Description:      strings.TrimSpace(req.Description),
		EstimatedCredits: s.calculator.Estimate(in.area, in.typ),
		Status:           models.StatusPending,
		DeviceInfo: models.DeviceInfo{
			Platform: defaultPlatform,
			Version:  orDefault(req.AppVersion, defaultAppVersion),
			Device:   orDefault(req.DeviceInfo, defaultDevice),
		},
		AIVerification: models.AIVerification{Result: models.AIResultPending},
	}

	images, written, err := s.storeImages(ctx, sub.ID, req.Images)
	if err != nil {
		s.deleteObjects(written)
		return nil, err
	}
	sub.Images = images

	if err := s.store.EnsureUser(ctx, sub.UserID); err != nil {
		s.deleteObjects(written)
		return nil, &StorageError{Op: "failed to register user", Err: err}
	}

	var delay time.Duration
	if len(images) > 0 {
		delay = s.verifyDelay
	}
	if err := s.store.CreateSubmission(ctx, sub, delay); err != nil {
		s.deleteObjects(written)
		return nil, &StorageError{Op: "failed to create submission", Err: err}
	}

	s.logger.Info("submission created",
		zap.String("submission_id", sub.ID.String()),
		zap.String("user_id", sub.UserID),
		zap.String("type", sub.Type),
		zap.Int("images", len(images)),
		zap.Int64("estimated_credits", sub.EstimatedCredits),
	)
	metrics.RecordSubmissionCreated()

	if s.recordLocation {
		s.anchorLocation(ctx, sub)
	}

	if len(images) > 0 && s.scheduler != nil {
		s.scheduler.Schedule(delay)
	}

	return &models.SubmitResponse{
		SubmissionID:     sub.ID,
		Status:           sub.Status,
		EstimatedCredits: sub.EstimatedCredits,
		Message:          createdMessage,
	}, nil
}

// storeImages processes and uploads every image concurrently. It returns the
// image records in upload order and the paths written so far, which the
// caller deletes when the create fails.
func (s *Service) storeImages(ctx context.Context, submissionID uuid.UUID, uploads []Upload) ([]models.Image, []string, error) {
	if len(uploads) == 0 {
		return []models.Image{}, nil, nil
	}

	images := make([]models.Image, len(uploads))
	var mu sync.Mutex
	var written []string
	record := func(path string) {
		mu.Lock()
		written = append(written, path)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(2)
	for i, up := range uploads {
		g.Go(func() error {
			rendered, err := s.images.Process(up.Data)
			if err != nil {
				if errors.Is(err, imaging.ErrUndecodable) {
					return &ValidationError{Invalid: []string{"images"}}
				}
				return &StorageError{Op: "failed to process image", Err: err}
			}

			imageID := uuid.New()
			mainPath := objectstore.ImagePath(submissionID.String(), imageID.String())
			mainURL, err := s.objects.Put(gctx, mainPath, rendered.Main.Data, "image/jpeg")
			if err != nil {
				return &StorageError{Op: "failed to upload image", Err: err}
			}
			record(mainPath)

			thumbPath := objectstore.ThumbnailPath(submissionID.String(), imageID.String())
			thumbURL, err := s.objects.Put(gctx, thumbPath, rendered.Thumbnail.Data, "image/jpeg")
			if err != nil {
				return &StorageError{Op: "failed to upload thumbnail", Err: err}
			}
			record(thumbPath)

			size := up.Size
			if size <= 0 {
				size = int64(len(up.Data))
			}
			images[i] = models.Image{
				ID:           imageID,
				URL:          mainURL,
				Thumbnail:    thumbURL,
				OriginalName: up.Name,
				Size:         size,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, written, err
	}
	return images, written, nil
}

// deleteObjects removes uploaded objects after a failed create. It runs
// detached from the request so a cancelled request still cleans up.
func (s *Service) deleteObjects(paths []string) {
	if len(paths) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, p := range paths {
		if err := s.objects.Delete(ctx, p); err != nil {
			s.logger.Warn("failed to delete orphaned object", zap.String("path", p), zap.Error(err))
		}
	}
}

// anchorLocation writes the coordinates on chain. Failures are logged only.
func (s *Service) anchorLocation(ctx context.Context, sub *models.Submission) {
	if s.ledger == nil {
		return
	}
	start := time.Now()
	loc, err := s.ledger.RecordLocation(ctx, sub.ID, sub.Location.Lat, sub.Location.Lng)
	metrics.ObserveLedger("recordSubmissionLocation", start, err)
	if err != nil {
		s.logger.Warn("on-chain location recording failed, continuing",
			zap.String("submission_id", sub.ID.String()), zap.Error(err))
		return
	}
	if err := s.store.SetLocationOnChain(ctx, sub.ID, loc); err != nil {
		s.logger.Warn("failed to store on-chain location",
			zap.String("submission_id", sub.ID.String()), zap.Error(err))
		return
	}
	sub.LocationOnChain = loc
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
