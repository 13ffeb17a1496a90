package teams

import (
	"gorm.io/gorm"

	"github.com/notifyhub/notifyhub/app/models"
)

// Repository provides DB operations used by the teams service.
type Repository interface {
	GetTeamByID(teamID uint) (*models.Team, error)
	FindUnconfirmedMembership(teamID uint, email string) (*models.TeamMembership, error)
	DeleteMembership(id uint) error
	CreateMembership(m *models.TeamMembership) error
	GetMembershipByInviteToken(token string) (*models.TeamMembership, error)
	SaveMembership(m *models.TeamMembership) error
	ListMemberships(teamID uint) ([]models.TeamMembership, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a teams repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetTeamByID(teamID uint) (*models.Team, error) {
	var team models.Team
	if err := r.db.First(&team, teamID).Error; err != nil {
		return nil, err
	}
	return &team, nil
}

func (r *gormRepository) FindUnconfirmedMembership(teamID uint, email string) (*models.TeamMembership, error) {
	var m models.TeamMembership
	err := r.db.
		Where("team_id = ? AND user_email = ? AND confirmed = ?", teamID, email, false).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *gormRepository) DeleteMembership(id uint) error {
	return r.db.Delete(&models.TeamMembership{}, id).Error
}

func (r *gormRepository) CreateMembership(m *models.TeamMembership) error {
	return r.db.Create(m).Error
}

func (r *gormRepository) GetMembershipByInviteToken(token string) (*models.TeamMembership, error) {
	var m models.TeamMembership
	if err := r.db.Where("invite_token = ?", token).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *gormRepository) SaveMembership(m *models.TeamMembership) error {
	return r.db.Save(m).Error
}

func (r *gormRepository) ListMemberships(teamID uint) ([]models.TeamMembership, error) {
	var ms []models.TeamMembership
	err := r.db.Where("team_id = ?", teamID).Order("created_at ASC").Find(&ms).Error
	return ms, err
}
