package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/jjdimalanta/mangan-app/models"
	"github.com/jjdimalanta/mangan-app/services"
	"github.com/jjdimalanta/mangan-app/utils"
)

type CatalogController struct {
	DB *gorm.DB
}

func NewCatalogController(db *gorm.DB) *CatalogController {
	return &CatalogController{DB: db}
}

// GetCategories returns categories in menu display order.
func (cc *CatalogController) GetCategories(c *gin.Context) {
	var categories []models.ProductCategory
	if err := cc.DB.Order("sort_order asc, name asc").Find(&categories).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of categories", categories)
}

// CreateCategory
func (cc *CatalogController) CreateCategory(c *gin.Context) {
	var req struct {
		Name      string `json:"name" binding:"required"`
		SortOrder int    `json:"sort_order"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	category := models.ProductCategory{Name: req.Name, SortOrder: req.SortOrder}
	if err := cc.DB.Create(&category).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Category created", category)
}

// UpdateCategory
func (cc *CatalogController) UpdateCategory(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("category_id"))

	var category models.ProductCategory
	if err := cc.DB.First(&category, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("category not found"))
		return
	}

	var req struct {
		Name      *string `json:"name"`
		SortOrder *int    `json:"sort_order"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if req.Name != nil {
		category.Name = *req.Name
	}
	if req.SortOrder != nil {
		category.SortOrder = *req.SortOrder
	}

	if err := cc.DB.Save(&category).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Category updated", category)
}

// DeleteCategory refuses while products still reference the category.
func (cc *CatalogController) DeleteCategory(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("category_id"))

	var count int64
	cc.DB.Model(&models.Product{}).Where("category_id = ?", id).Count(&count)
	if count > 0 {
		utils.RespondError(c, http.StatusConflict,
			fmt.Errorf("category still has %d products", count))
		return
	}

	if err := cc.DB.Delete(&models.ProductCategory{}, id).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Category deleted", gin.H{"category_id": id})
}

// GetProducts lists the storefront catalog. Only active products unless the
// caller asks for everything (admin screens pass include_inactive=1).
func (cc *CatalogController) GetProducts(c *gin.Context) {
	query := cc.DB.Preload("Category").Preload("FlavorRule")

	if c.Query("include_inactive") != "1" {
		query = query.Where("is_active = ?", true)
	}
	if categoryIDStr := c.Query("category"); categoryIDStr != "" {
		categoryID, err := strconv.Atoi(categoryIDStr)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, errors.New("invalid category ID"))
			return
		}
		query = query.Where("category_id = ?", categoryID)
	}

	var products []models.Product
	if err := query.Order("name asc").Find(&products).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of products", products)
}

// GetProductByID
func (cc *CatalogController) GetProductByID(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("product_id"))

	var product models.Product
	if err := cc.DB.Preload("Category").Preload("FlavorRule").First(&product, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Product detail", product)
}

// CreateProduct accepts a multipart form so images upload in the same request.
func (cc *CatalogController) CreateProduct(c *gin.Context) {
	c.Request.ParseMultipartForm(10 << 20)

	categoryID, err := strconv.ParseUint(c.PostForm("category_id"), 10, 32)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid category_id"))
		return
	}
	price, err := strconv.ParseFloat(c.PostForm("price"), 64)
	if err != nil || price < 0 {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid price"))
		return
	}

	productType := c.PostForm("product_type")
	if productType == "" {
		productType = models.ProductTypeSimple
	}
	switch productType {
	case models.ProductTypeSimple, models.ProductTypeFlavored, models.ProductTypeBundle:
	default:
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid product_type"))
		return
	}

	imageUrls, err := cc.saveProductImages(c)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	product := models.Product{
		CategoryID:  uint(categoryID),
		Name:        c.PostForm("name"),
		Description: c.PostForm("description"),
		Price:       price,
		ProductType: productType,
		IsActive:    c.PostForm("is_active") != "false",
	}
	if product.Name == "" {
		cleanupFiles(imageUrls)
		utils.RespondError(c, http.StatusBadRequest, errors.New("name is required"))
		return
	}
	if err := product.SetImageUrls(imageUrls); err != nil {
		cleanupFiles(imageUrls)
		utils.RespondError(c, http.StatusInternalServerError, errors.New("error processing image urls"))
		return
	}

	if err := cc.DB.Create(&product).Error; err != nil {
		cleanupFiles(imageUrls)
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	// Flavored products get their rule in the same request.
	if productType == models.ProductTypeFlavored {
		rule := flavorRuleFromForm(c, product.ID)
		if err := cc.DB.Create(&rule).Error; err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
		product.FlavorRule = &rule
	}

	utils.RespondJSON(c, http.StatusCreated, "Product created", product)
}

// UpdateProduct updates fields and optionally replaces images and the flavor
// rule. Missing form fields keep their current value.
func (cc *CatalogController) UpdateProduct(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("product_id"))

	var product models.Product
	if err := cc.DB.Preload("FlavorRule").First(&product, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("product not found"))
		return
	}

	c.Request.ParseMultipartForm(10 << 20)

	if name := c.PostForm("name"); name != "" {
		product.Name = name
	}
	if desc, ok := c.GetPostForm("description"); ok {
		product.Description = desc
	}
	if categoryIDStr := c.PostForm("category_id"); categoryIDStr != "" {
		categoryID, err := strconv.ParseUint(categoryIDStr, 10, 32)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, errors.New("invalid category_id"))
			return
		}
		product.CategoryID = uint(categoryID)
	}
	if priceStr := c.PostForm("price"); priceStr != "" {
		price, err := strconv.ParseFloat(priceStr, 64)
		if err != nil || price < 0 {
			utils.RespondError(c, http.StatusBadRequest, errors.New("invalid price"))
			return
		}
		product.Price = price
	}
	if activeStr := c.PostForm("is_active"); activeStr != "" {
		product.IsActive = activeStr == "true"
	}

	currentImages := product.GetImageUrls()

	var removedImages []string
	if removedStr := c.PostForm("removed_images"); removedStr != "" {
		for _, url := range strings.Split(removedStr, ",") {
			removedImages = append(removedImages, strings.TrimSpace(url))
		}
	}
	var keptImages []string
	for _, img := range currentImages {
		removed := false
		for _, r := range removedImages {
			if img == r {
				removed = true
				removeUploadedFile(img)
				break
			}
		}
		if !removed {
			keptImages = append(keptImages, img)
		}
	}

	newImages, err := cc.saveProductImages(c)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if err := product.SetImageUrls(append(keptImages, newImages...)); err != nil {
		utils.RespondError(c, http.StatusInternalServerError, errors.New("error processing image urls"))
		return
	}

	if err := cc.DB.Save(&product).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	if product.ProductType == models.ProductTypeFlavored && c.PostForm("total_units") != "" {
		rule := flavorRuleFromForm(c, product.ID)
		if product.FlavorRule != nil {
			rule.ID = product.FlavorRule.ID
			rule.CreatedAt = product.FlavorRule.CreatedAt
		}
		if err := cc.DB.Save(&rule).Error; err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
		product.FlavorRule = &rule
	}

	utils.RespondJSON(c, http.StatusOK, "Product updated", product)
}

// DeleteProduct deactivates instead of deleting when orders reference the
// product, so order history keeps its joins.
func (cc *CatalogController) DeleteProduct(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("product_id"))

	var product models.Product
	if err := cc.DB.First(&product, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("product not found"))
		return
	}

	var ordered int64
	cc.DB.Model(&models.OrderItem{}).Where("product_id = ?", id).Count(&ordered)
	if ordered > 0 {
		product.IsActive = false
		if err := cc.DB.Save(&product).Error; err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
		utils.RespondJSON(c, http.StatusOK, "Product deactivated", product)
		return
	}

	if err := cc.DB.Where("product_id = ?", id).Delete(&models.FlavorRule{}).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if err := cc.DB.Delete(&models.Product{}, id).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Product deleted", gin.H{"product_id": id})
}

// GetFlavors lists flavors for the storefront pickers. ?category= narrows to
// one product family (wings, ribs).
func (cc *CatalogController) GetFlavors(c *gin.Context) {
	query := cc.DB.Order("flavor_type asc, name asc")

	if c.Query("include_inactive") != "1" {
		query = query.Where("is_active = ?", true)
	}
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}

	var flavors []models.Flavor
	if err := query.Find(&flavors).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of flavors", flavors)
}

// CreateFlavor
func (cc *CatalogController) CreateFlavor(c *gin.Context) {
	var req struct {
		Name       string  `json:"name" binding:"required"`
		Surcharge  float64 `json:"surcharge"`
		FlavorType string  `json:"flavor_type"`
		Category   string  `json:"category"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if req.Surcharge < 0 {
		utils.RespondError(c, http.StatusBadRequest, errors.New("surcharge must not be negative"))
		return
	}
	if req.FlavorType == "" {
		req.FlavorType = models.FlavorTypeAllTime
	}
	if req.FlavorType != models.FlavorTypeAllTime && req.FlavorType != models.FlavorTypeSpecial {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid flavor_type"))
		return
	}
	if req.Category == "" {
		req.Category = "wings"
	}

	flavor := models.Flavor{
		Name:       req.Name,
		Surcharge:  req.Surcharge,
		FlavorType: req.FlavorType,
		Category:   req.Category,
		IsActive:   true,
	}
	if err := cc.DB.Create(&flavor).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Flavor created", flavor)
}

// UpdateFlavor
func (cc *CatalogController) UpdateFlavor(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("flavor_id"))

	var flavor models.Flavor
	if err := cc.DB.First(&flavor, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("flavor not found"))
		return
	}

	var req struct {
		Name       *string  `json:"name"`
		Surcharge  *float64 `json:"surcharge"`
		FlavorType *string  `json:"flavor_type"`
		Category   *string  `json:"category"`
		IsActive   *bool    `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if req.Name != nil {
		flavor.Name = *req.Name
	}
	if req.Surcharge != nil {
		if *req.Surcharge < 0 {
			utils.RespondError(c, http.StatusBadRequest, errors.New("surcharge must not be negative"))
			return
		}
		flavor.Surcharge = *req.Surcharge
	}
	if req.FlavorType != nil {
		if *req.FlavorType != models.FlavorTypeAllTime && *req.FlavorType != models.FlavorTypeSpecial {
			utils.RespondError(c, http.StatusBadRequest, errors.New("invalid flavor_type"))
			return
		}
		flavor.FlavorType = *req.FlavorType
	}
	if req.Category != nil {
		flavor.Category = *req.Category
	}
	if req.IsActive != nil {
		flavor.IsActive = *req.IsActive
	}

	if err := cc.DB.Save(&flavor).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Flavor updated", flavor)
}

// DeleteFlavor deactivates; ordered flavors stay queryable in history.
func (cc *CatalogController) DeleteFlavor(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("flavor_id"))

	var flavor models.Flavor
	if err := cc.DB.First(&flavor, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("flavor not found"))
		return
	}

	flavor.IsActive = false
	if err := cc.DB.Save(&flavor).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Flavor deactivated", flavor)
}

// GenerateMenuPDF rebuilds the printable menu from the current catalog and
// returns its public URL.
func (cc *CatalogController) GenerateMenuPDF(c *gin.Context) {
	pdfService := services.NewMenuPDFService(cc.DB)
	url, err := pdfService.Generate()
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.Printf("Menu PDF regenerated: %s", url)
	utils.RespondJSON(c, http.StatusOK, "Menu PDF generated", gin.H{"url": url})
}

// saveProductImages stores uploaded files and returns their public URLs.
func (cc *CatalogController) saveProductImages(c *gin.Context) ([]string, error) {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil, nil
	}
	files := form.File["images"]
	if len(files) == 0 {
		return nil, nil
	}

	uploadDir := "public/uploads/menu_images"
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, errors.New("error creating upload directory")
	}

	var imageUrls []string
	for _, file := range files {
		filename := fmt.Sprintf("%d-%s", time.Now().UnixNano(), file.Filename)
		filepath := fmt.Sprintf("%s/%s", uploadDir, filename)

		if err := c.SaveUploadedFile(file, filepath); err != nil {
			cleanupFiles(imageUrls)
			return nil, errors.New("error saving image")
		}
		imageUrls = append(imageUrls, fmt.Sprintf("/uploads/menu_images/%s", filename))
	}
	return imageUrls, nil
}

func flavorRuleFromForm(c *gin.Context, productID uint) models.FlavorRule {
	atoiOr := func(key string, def int) int {
		v, err := strconv.Atoi(c.PostForm(key))
		if err != nil {
			return def
		}
		return v
	}

	policy := c.PostForm("pricing_policy")
	switch policy {
	case models.PolicyPerSlot, models.PolicyPerDistinct, models.PolicyPerUnitRatio:
	default:
		policy = models.PolicyPerSlot
	}

	return models.FlavorRule{
		ProductID:      productID,
		TotalUnits:     atoiOr("total_units", 6),
		UnitsPerFlavor: atoiOr("units_per_flavor", 3),
		MinFlavors:     atoiOr("min_flavors", 1),
		MaxFlavors:     atoiOr("max_flavors", 0),
		PricingPolicy:  policy,
	}
}

func cleanupFiles(urls []string) {
	for _, url := range urls {
		removeUploadedFile(url)
	}
}

func removeUploadedFile(url string) {
	if strings.HasPrefix(url, "/uploads/") {
		os.Remove("public" + url)
	}
}
