package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/amirphl/orochi-outreach/config"
	"github.com/amirphl/orochi-outreach/models"
	"github.com/amirphl/orochi-outreach/repository"
	"github.com/amirphl/orochi-outreach/utils"
	"github.com/xuri/excelize/v2"
)

const enrollChunkSize = 500

// Columns of the contact sheet mapped onto contact fields; others become attributes
var contactColumns = map[string]bool{
	"email":      true,
	"phone":      true,
	"first_name": true,
	"last_name":  true,
	"company":    true,
}

// ImportResult reports an import-campaigns run
type ImportResult struct {
	Campaigns []ImportedCampaign
}

type ImportedCampaign struct {
	ID   uint
	Name string
}

// EnrollResult reports an enroll run
type EnrollResult struct {
	Rows     int
	Invalid  int
	Contacts int
	Enrolled int64
}

// EnrollmentFlow loads campaigns and contacts from files
type EnrollmentFlow interface {
	ImportCampaigns(ctx context.Context, file *config.CampaignFile) (*ImportResult, error)
	EnrollContacts(ctx context.Context, campaignID uint, sheet io.Reader) (*EnrollResult, error)
}

// EnrollmentFlowImpl implements EnrollmentFlow
type EnrollmentFlowImpl struct {
	campaignRepo repository.CampaignRepository
	controlRepo  repository.CampaignControlRepository
	contactRepo  repository.ContactRepository
	progressRepo repository.ContactProgressRepository
	logger       *log.Logger
}

func NewEnrollmentFlow(
	campaignRepo repository.CampaignRepository,
	controlRepo repository.CampaignControlRepository,
	contactRepo repository.ContactRepository,
	progressRepo repository.ContactProgressRepository,
	logger *log.Logger,
) EnrollmentFlow {
	if logger == nil {
		logger = log.Default()
	}
	return &EnrollmentFlowImpl{
		campaignRepo: campaignRepo,
		controlRepo:  controlRepo,
		contactRepo:  contactRepo,
		progressRepo: progressRepo,
		logger:       logger,
	}
}

// ImportCampaigns upserts campaigns by name; quota and pause are applied only when the file sets them
func (f *EnrollmentFlowImpl) ImportCampaigns(ctx context.Context, file *config.CampaignFile) (*ImportResult, error) {
	if file == nil || len(file.Campaigns) == 0 {
		return nil, NewBusinessError("CAMPAIGN_FILE_EMPTY", "Campaign file is empty", ErrCampaignFileEmpty)
	}

	result := &ImportResult{}
	for _, def := range file.Campaigns {
		campaign := def.Model()
		if err := f.campaignRepo.Upsert(ctx, campaign); err != nil {
			return result, NewBusinessErrorf("CAMPAIGN_IMPORT_FAILED", "Failed to import campaign %q", err, def.Name)
		}

		if def.DailyQuota > 0 || def.Paused {
			control, err := f.controlRepo.Get(ctx, campaign.ID)
			if err != nil {
				return result, NewBusinessError("CONTROL_LOOKUP_FAILED", "Failed to read campaign control", err)
			}
			if def.DailyQuota > 0 {
				control.DailyQuota = def.DailyQuota
			}
			if def.Paused {
				control.Paused = true
			}
			control.UpdatedBy = "import"
			if err := f.controlRepo.Upsert(ctx, control); err != nil {
				return result, NewBusinessError("CONTROL_UPDATE_FAILED", "Failed to update campaign control", err)
			}
		}

		f.logger.Printf("enrollment: imported campaign id=%d name=%q steps=%d", campaign.ID, campaign.Name, len(campaign.Steps))
		result.Campaigns = append(result.Campaigns, ImportedCampaign{ID: campaign.ID, Name: campaign.Name})
	}
	return result, nil
}

// EnrollContacts reads the first sheet of an xlsx workbook and enrolls every valid row as ACTIVE
func (f *EnrollmentFlowImpl) EnrollContacts(ctx context.Context, campaignID uint, sheet io.Reader) (*EnrollResult, error) {
	campaign, err := f.campaignRepo.ByID(ctx, campaignID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessErrorf("CAMPAIGN_NOT_FOUND", "Campaign %d not found", ErrCampaignNotFound, campaignID)
	}

	xl, err := excelize.OpenReader(sheet)
	if err != nil {
		return nil, NewBusinessError("INVALID_SHEET", "Failed to open contact sheet", err)
	}
	defer func() { _ = xl.Close() }()

	rows, err := xl.GetRows(xl.GetSheetName(0))
	if err != nil {
		return nil, NewBusinessError("INVALID_SHEET", "Failed to read contact sheet", err)
	}
	if len(rows) == 0 {
		return nil, NewBusinessError("INVALID_SHEET", "Contact sheet has no header row", ErrInvalidSheet)
	}

	header := make([]string, len(rows[0]))
	emailCol := -1
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
		if header[i] == "email" {
			emailCol = i
		}
	}
	if emailCol < 0 {
		return nil, NewBusinessError("INVALID_SHEET", "Contact sheet needs an email column", ErrInvalidSheet)
	}

	result := &EnrollResult{}
	ids := make([]uint, 0, enrollChunkSize)
	flush := func() error {
		if len(ids) == 0 {
			return nil
		}
		n, err := f.progressRepo.Enroll(ctx, campaignID, ids, utils.UTCNow())
		if err != nil {
			return err
		}
		result.Enrolled += n
		ids = ids[:0]
		return nil
	}

	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		result.Rows++

		contact, err := contactFromRow(header, row)
		if err != nil {
			result.Invalid++
			f.logger.Printf("enrollment: skipping row %d: %v", result.Rows+1, err)
			continue
		}
		if err := f.contactRepo.UpsertByEmail(ctx, contact); err != nil {
			return result, NewBusinessError("CONTACT_UPSERT_FAILED", "Failed to save contact", err)
		}
		result.Contacts++
		ids = append(ids, contact.ID)

		if len(ids) >= enrollChunkSize {
			if err := flush(); err != nil {
				return result, NewBusinessError("ENROLL_FAILED", "Failed to enroll contacts", err)
			}
		}
	}
	if err := flush(); err != nil {
		return result, NewBusinessError("ENROLL_FAILED", "Failed to enroll contacts", err)
	}

	f.logger.Printf("enrollment: campaign=%d rows=%d invalid=%d enrolled=%d", campaignID, result.Rows, result.Invalid, result.Enrolled)
	return result, nil
}

func contactFromRow(header, row []string) (*models.Contact, error) {
	contact := &models.Contact{}
	attrs := map[string]string{}
	for i, name := range header {
		if i >= len(row) || name == "" {
			continue
		}
		value := strings.TrimSpace(row[i])
		switch name {
		case "email":
			contact.Email = models.NormalizeEmail(value)
		case "phone":
			contact.Phone = value
		case "first_name":
			contact.FirstName = value
		case "last_name":
			contact.LastName = value
		case "company":
			contact.Company = value
		default:
			if value != "" && !contactColumns[name] {
				attrs[name] = value
			}
		}
	}

	if contact.Email == "" || models.EmailDomain(contact.Email) == "" || strings.Count(contact.Email, "@") != 1 {
		return nil, fmt.Errorf("invalid email %q", contact.Email)
	}
	contact.Domain = models.EmailDomain(contact.Email)
	if len(attrs) > 0 {
		raw, err := json.Marshal(attrs)
		if err != nil {
			return nil, err
		}
		contact.Attributes = raw
	}
	return contact, nil
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
