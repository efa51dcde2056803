package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-pdf/fpdf"
	"gorm.io/gorm"

	"github.com/jjdimalanta/mangan-app/models"
	"github.com/jjdimalanta/mangan-app/pricing"
	"github.com/jjdimalanta/mangan-app/utils"
)

// MenuPDFService renders the active catalog into a printable PDF the
// storefront links from its footer.
type MenuPDFService struct {
	DB        *gorm.DB
	OutputDir string
	PublicDir string
}

func NewMenuPDFService(db *gorm.DB) *MenuPDFService {
	return &MenuPDFService{
		DB:        db,
		OutputDir: filepath.Join("uploads", "menu"),
		PublicDir: "/uploads/menu",
	}
}

// Generate writes the menu PDF and records its public URL in settings.
// Returns the public URL.
func (s *MenuPDFService) Generate() (string, error) {
	var categories []models.ProductCategory
	if err := s.DB.Order("sort_order ASC, name ASC").Find(&categories).Error; err != nil {
		return "", fmt.Errorf("failed to load categories: %w", err)
	}

	var products []models.Product
	if err := s.DB.Preload("FlavorRule").
		Where("is_active = ?", true).
		Order("category_id ASC, name ASC").
		Find(&products).Error; err != nil {
		return "", fmt.Errorf("failed to load products: %w", err)
	}

	var flavors []models.Flavor
	if err := s.DB.Where("is_active = ?", true).
		Order("flavor_type ASC, name ASC").
		Find(&flavors).Error; err != nil {
		return "", fmt.Errorf("failed to load flavors: %w", err)
	}

	byCategory := make(map[uint][]models.Product)
	for _, p := range products {
		byCategory[p.CategoryID] = append(byCategory[p.CategoryID], p)
	}

	storeName := os.Getenv("STORE_NAME")
	if storeName == "" {
		storeName = "Mangan"
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(storeName+" Menu", false)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("%s | generated %s | page %d",
			storeName, time.Now().Format("Jan 2, 2006"), pdf.PageNo()),
			"", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 22)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 12, storeName, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(90, 90, 90)
	pdf.CellFormat(0, 6, "Menu", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	for _, category := range categories {
		items := byCategory[category.ID]
		if len(items) == 0 {
			continue
		}

		pdf.SetFont("Helvetica", "B", 14)
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFillColor(240, 240, 240)
		pdf.CellFormat(0, 9, category.Name, "", 1, "L", true, 0, "")
		pdf.Ln(1)

		for _, product := range items {
			pdf.SetFont("Helvetica", "B", 11)
			pdf.CellFormat(140, 6, product.Name, "", 0, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 11)
			pdf.CellFormat(0, 6, utils.FormatCurrencyPHP(product.Price), "", 1, "R", false, 0, "")

			if product.Description != "" {
				pdf.SetFont("Helvetica", "", 9)
				pdf.SetTextColor(110, 110, 110)
				pdf.MultiCell(0, 4.5, product.Description, "", "L", false)
				pdf.SetTextColor(0, 0, 0)
			}

			if product.ProductType == models.ProductTypeFlavored {
				rule := pricing.Resolve(&product)
				pdf.SetFont("Helvetica", "I", 9)
				pdf.SetTextColor(110, 110, 110)
				pdf.CellFormat(0, 4.5, flavorRuleNote(rule), "", 1, "L", false, 0, "")
				pdf.SetTextColor(0, 0, 0)
			}
			pdf.Ln(1.5)
		}
		pdf.Ln(3)
	}

	if len(flavors) > 0 {
		pdf.SetFont("Helvetica", "B", 14)
		pdf.SetFillColor(240, 240, 240)
		pdf.CellFormat(0, 9, "Flavors", "", 1, "L", true, 0, "")
		pdf.Ln(1)

		pdf.SetFont("Helvetica", "", 10)
		for _, flavor := range flavors {
			label := flavor.Name
			if flavor.Surchargeable() && flavor.Surcharge > 0 {
				label = fmt.Sprintf("%s (+%s per serving)", flavor.Name, utils.FormatCurrencyPHP(flavor.Surcharge))
			}
			pdf.CellFormat(0, 5.5, label, "", 1, "L", false, 0, "")
		}
	}

	if err := os.MkdirAll(s.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create menu directory: %w", err)
	}

	filename := fmt.Sprintf("menu-%s.pdf", time.Now().Format("20060102"))
	fullPath := filepath.Join(s.OutputDir, filename)
	if err := pdf.OutputFileAndClose(fullPath); err != nil {
		return "", fmt.Errorf("failed to write menu PDF: %w", err)
	}

	publicURL := s.PublicDir + "/" + filename
	if err := s.saveSetting(models.SettingMenuPdfURL, publicURL); err != nil {
		return "", err
	}

	utils.InfoLogger.Printf("Menu PDF generated at %s", fullPath)
	return publicURL, nil
}

func flavorRuleNote(rule pricing.Rule) string {
	if rule.SingleSelect() {
		return "choose 1 flavor"
	}
	if rule.MinFlavors == rule.MaxFlavors {
		return fmt.Sprintf("%d pcs, choose %d flavors (%d pcs per flavor)",
			rule.TotalUnits, rule.MaxFlavors, rule.UnitsPerFlavor)
	}
	return fmt.Sprintf("%d pcs, choose %d-%d flavors (%d pcs per flavor)",
		rule.TotalUnits, rule.MinFlavors, rule.MaxFlavors, rule.UnitsPerFlavor)
}

func (s *MenuPDFService) saveSetting(key, value string) error {
	var setting models.Setting
	err := s.DB.Where("`key` = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.DB.Create(&models.Setting{Key: key, Value: value}).Error
	}
	if err != nil {
		return err
	}
	return s.DB.Model(&setting).Update("value", value).Error
}
