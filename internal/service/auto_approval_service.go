package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/noah-isme/coop-dashboard-api/internal/dto"
	appErrors "github.com/noah-isme/coop-dashboard-api/pkg/errors"
)

var (
	domainPattern = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,63}$`)
	localPattern  = regexp.MustCompile(`^[a-z0-9.!#$%&'*+/=?^_{|}~-]+$`)
)

type autoApprovalUpstream interface {
	AutoApproved(ctx context.Context) ([]string, error)
	SetAutoApproved(ctx context.Context, datasites []string) error
}

// AutoApprovalService maintains the trusted datasite allowlist.
type AutoApprovalService struct {
	upstream autoApprovalUpstream
	logger   *zap.Logger
}

// NewAutoApprovalService constructs the service.
func NewAutoApprovalService(upstream autoApprovalUpstream, logger *zap.Logger) *AutoApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutoApprovalService{upstream: upstream, logger: logger}
}

// Get returns the current allowlist.
func (s *AutoApprovalService) Get(ctx context.Context) (*dto.AutoApprovalResponse, error) {
	datasites, err := s.upstream.AutoApproved(ctx)
	if err != nil {
		return nil, upstreamError(err)
	}
	return &dto.AutoApprovalResponse{Datasites: datasites}, nil
}

// Set replaces the allowlist with the normalised entries. Every invalid
// entry is reported in one validation error and nothing is sent upstream.
func (s *AutoApprovalService) Set(ctx context.Context, req dto.AutoApprovalRequest) (*dto.AutoApprovalResponse, error) {
	datasites, err := NormalizeDatasites(req.Datasites)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if err := s.upstream.SetAutoApproved(ctx, datasites); err != nil {
		return nil, upstreamError(err)
	}
	s.logger.Info("auto-approval list replaced", zap.Int("entries", len(datasites)))
	return &dto.AutoApprovalResponse{Datasites: datasites}, nil
}

// NormalizeDatasites trims, lower-cases and de-duplicates entries, keeping
// first occurrences in order. Blank entries are skipped.
func NormalizeDatasites(entries []string) ([]string, error) {
	var errs *multierror.Error
	seen := make(map[string]struct{}, len(entries))
	out := make([]string, 0, len(entries))
	for i, raw := range entries {
		entry := strings.ToLower(strings.TrimSpace(raw))
		if entry == "" {
			continue
		}
		if !validDatasite(entry) {
			errs = multierror.Append(errs, fmt.Errorf("entry %d (%q) is not an email or domain", i+1, raw))
			continue
		}
		entry = strings.TrimPrefix(entry, "@")
		if _, dup := seen[entry]; dup {
			continue
		}
		seen[entry] = struct{}{}
		out = append(out, entry)
	}
	if errs != nil {
		errs.ErrorFormat = datasiteErrorFormat
		return nil, errs
	}
	return out, nil
}

func validDatasite(entry string) bool {
	if strings.HasPrefix(entry, "@") {
		return domainPattern.MatchString(entry[1:])
	}
	local, domain, isEmail := strings.Cut(entry, "@")
	if !isEmail {
		return domainPattern.MatchString(entry)
	}
	return localPattern.MatchString(local) && domainPattern.MatchString(domain)
}

func datasiteErrorFormat(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return "invalid auto-approval list: " + strings.Join(msgs, "; ")
}
