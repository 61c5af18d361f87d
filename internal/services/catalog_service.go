package services

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/utils"
)

const (
	ProductImageFolder  = "ecommerce/products"
	CategoryImageFolder = "ecommerce/categories"
	MaxProductImages    = 5
)

// Upload is one file received from a multipart form.
type Upload struct {
	Filename string
	Body     io.Reader
}

// CatalogService manages categories and products.
type CatalogService struct {
	db     *gorm.DB
	media  MediaUploader
	logger *zap.Logger
}

func NewCatalogService(db *gorm.DB, media MediaUploader, logger *zap.Logger) *CatalogService {
	return &CatalogService{db: db, media: media, logger: logger}
}

// ProductFilter narrows the public product listing.
type ProductFilter struct {
	Category string
	Search   string
}

type ProductPage struct {
	Products    []models.Product `json:"products"`
	TotalPages  int64            `json:"totalPages"`
	CurrentPage int              `json:"currentPage"`
	Total       int64            `json:"total"`
}

// ListProducts returns active products, newest first.
func (s *CatalogService) ListProducts(ctx context.Context, filter ProductFilter, pg utils.Pagination) (*ProductPage, error) {
	query := s.db.WithContext(ctx).Model(&models.Product{}).Where("is_active = ?", true)

	if filter.Category != "" {
		categoryID, err := uuid.Parse(filter.Category)
		if err != nil {
			return &ProductPage{Products: []models.Product{}, CurrentPage: pg.Page}, nil
		}
		query = query.Where("category_id = ?", categoryID)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, Upstream("Failed to get products", err)
	}

	products := []models.Product{}
	if err := query.Preload("Category").
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&products).Error; err != nil {
		return nil, Upstream("Failed to get products", err)
	}

	return &ProductPage{
		Products:    products,
		TotalPages:  pg.TotalPages(total),
		CurrentPage: pg.Page,
		Total:       total,
	}, nil
}

// GetProduct returns one product with its category.
func (s *CatalogService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	productID, err := uuid.Parse(id)
	if err != nil {
		return nil, NotFound("Product not found")
	}

	var product models.Product
	if err := s.db.WithContext(ctx).Preload("Category").First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("Product not found")
		}
		return nil, Upstream("Failed to get product", err)
	}
	return &product, nil
}

// ProductInput holds the editable product fields.
type ProductInput struct {
	Name           string
	Description    string
	Price          decimal.Decimal
	DiscountPrice  decimal.Decimal
	Category       string
	Stock          int
	Specifications map[string]string
}

func (s *CatalogService) validateProduct(ctx context.Context, in ProductInput) (uuid.UUID, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Description) == "" {
		return uuid.Nil, Validation("Name and description are required")
	}
	if in.Price.IsNegative() || in.DiscountPrice.IsNegative() {
		return uuid.Nil, Validation("Price must not be negative")
	}
	if in.Stock < 0 {
		return uuid.Nil, Validation("Stock must not be negative")
	}

	categoryID, err := uuid.Parse(in.Category)
	if err != nil {
		return uuid.Nil, Validation("Invalid category")
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Category{}).Where("id = ?", categoryID).Count(&count).Error; err != nil {
		return uuid.Nil, Upstream("Failed to check category", err)
	}
	if count == 0 {
		return uuid.Nil, Validation("Invalid category")
	}
	return categoryID, nil
}

// CreateProduct stores a product with its uploaded images. Admin only.
func (s *CatalogService) CreateProduct(ctx context.Context, p Principal, in ProductInput, images []Upload) (*models.Product, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	categoryID, err := s.validateProduct(ctx, in)
	if err != nil {
		return nil, err
	}

	urls, err := s.uploadAll(ctx, ProductImageFolder, images)
	if err != nil {
		return nil, err
	}

	product := models.Product{
		Name:           strings.TrimSpace(in.Name),
		Description:    strings.TrimSpace(in.Description),
		Price:          in.Price,
		DiscountPrice:  in.DiscountPrice,
		CategoryID:     categoryID,
		Images:         pq.StringArray(urls),
		Stock:          in.Stock,
		IsActive:       true,
		Specifications: models.Specifications(in.Specifications),
	}
	if err := s.db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, Upstream("Failed to create product", err)
	}
	return &product, nil
}

// UpdateProduct replaces the product fields. Images are replaced only when
// new ones are uploaded. Admin only.
func (s *CatalogService) UpdateProduct(ctx context.Context, p Principal, id string, in ProductInput, images []Upload) (*models.Product, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	categoryID, err := s.validateProduct(ctx, in)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"name":           strings.TrimSpace(in.Name),
		"description":    strings.TrimSpace(in.Description),
		"price":          in.Price,
		"discount_price": in.DiscountPrice,
		"category_id":    categoryID,
		"stock":          in.Stock,
		"specifications": models.Specifications(in.Specifications),
	}
	if len(images) > 0 {
		urls, err := s.uploadAll(ctx, ProductImageFolder, images)
		if err != nil {
			return nil, err
		}
		updates["images"] = pq.StringArray(urls)
	}

	if err := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", product.ID).Updates(updates).Error; err != nil {
		return nil, Upstream("Failed to update product", err)
	}
	return s.GetProduct(ctx, id)
}

// DeleteProduct hides a product from the catalog. Past orders keep
// referencing it. Admin only.
func (s *CatalogService) DeleteProduct(ctx context.Context, p Principal, id string) error {
	if err := p.RequireAdmin(); err != nil {
		return err
	}
	productID, err := uuid.Parse(id)
	if err != nil {
		return NotFound("Product not found")
	}
	res := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", productID).Update("is_active", false)
	if res.Error != nil {
		return Upstream("Failed to delete product", res.Error)
	}
	if res.RowsAffected == 0 {
		return NotFound("Product not found")
	}
	return nil
}

// ListCategories returns active categories by name.
func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories := []models.Category{}
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("name asc").Find(&categories).Error; err != nil {
		return nil, Upstream("Failed to get categories", err)
	}
	return categories, nil
}

func (s *CatalogService) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	categoryID, err := uuid.Parse(id)
	if err != nil {
		return nil, NotFound("Category not found")
	}
	var category models.Category
	if err := s.db.WithContext(ctx).First(&category, "id = ?", categoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("Category not found")
		}
		return nil, Upstream("Failed to get category", err)
	}
	return &category, nil
}

type CategoryInput struct {
	Name        string
	Description string
}

// CreateCategory stores a category with an optional image. Admin only.
func (s *CatalogService) CreateCategory(ctx context.Context, p Principal, in CategoryInput, image *Upload) (*models.Category, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, Validation("Category name is required")
	}

	category := models.Category{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		IsActive:    true,
	}
	if image != nil {
		url, err := s.upload(ctx, CategoryImageFolder, *image)
		if err != nil {
			return nil, err
		}
		category.Image = url
	}

	if err := s.db.WithContext(ctx).Create(&category).Error; err != nil {
		return nil, Upstream("Failed to create category", err)
	}
	return &category, nil
}

// UpdateCategory replaces name and description, and the image when a new
// one is uploaded. Admin only.
func (s *CatalogService) UpdateCategory(ctx context.Context, p Principal, id string, in CategoryInput, image *Upload) (*models.Category, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	category, err := s.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, Validation("Category name is required")
	}

	updates := map[string]interface{}{
		"name":        strings.TrimSpace(in.Name),
		"description": strings.TrimSpace(in.Description),
	}
	if image != nil {
		url, err := s.upload(ctx, CategoryImageFolder, *image)
		if err != nil {
			return nil, err
		}
		updates["image"] = url
	}

	if err := s.db.WithContext(ctx).Model(category).Updates(updates).Error; err != nil {
		return nil, Upstream("Failed to update category", err)
	}
	return s.GetCategory(ctx, id)
}

// DeleteCategory hides a category. Admin only.
func (s *CatalogService) DeleteCategory(ctx context.Context, p Principal, id string) error {
	if err := p.RequireAdmin(); err != nil {
		return err
	}
	categoryID, err := uuid.Parse(id)
	if err != nil {
		return NotFound("Category not found")
	}
	res := s.db.WithContext(ctx).Model(&models.Category{}).Where("id = ?", categoryID).Update("is_active", false)
	if res.Error != nil {
		return Upstream("Failed to delete category", res.Error)
	}
	if res.RowsAffected == 0 {
		return NotFound("Category not found")
	}
	return nil
}

func (s *CatalogService) upload(ctx context.Context, folder string, file Upload) (string, error) {
	if s.media == nil {
		return "", Upstream("Image upload is not configured", nil)
	}
	url, err := s.media.Upload(ctx, folder, file.Filename, file.Body)
	if err != nil {
		s.logger.Error("image upload failed", zap.String("file", file.Filename), zap.Error(err))
		return "", Upstream("Failed to upload image", err)
	}
	return url, nil
}

// uploadAll uploads images concurrently and keeps their order.
func (s *CatalogService) uploadAll(ctx context.Context, folder string, files []Upload) ([]string, error) {
	if len(files) > MaxProductImages {
		return nil, Validation("At most %d images are allowed", MaxProductImages)
	}

	urls := make([]string, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			url, err := s.upload(gctx, folder, file)
			if err != nil {
				return err
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}
