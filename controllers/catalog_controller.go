package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"venue-backend/models"
	"venue-backend/services"
	"venue-backend/utils"
)

type CreateCategoryRequest struct {
	Name      string `json:"name" binding:"required"`
	SortOrder int    `json:"sortOrder"`
	Active    *bool  `json:"active"`
}

type CreateProductRequest struct {
	CategoryID uint            `json:"categoryId" binding:"required"`
	Name       string          `json:"name" binding:"required"`
	Unit       string          `json:"unit"`
	Price      decimal.Decimal `json:"price"`
	Available  *bool           `json:"available"`
}

type CreateEmployeeRequest struct {
	FullName   string              `json:"fullName" binding:"required"`
	Role       models.EmployeeRole `json:"role"`
	Phone      string              `json:"phone"`
	ExternalID *string             `json:"externalId"`
	Pin        string              `json:"pin"`
}

type ActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// CatalogController serves categories, products and employees.
type CatalogController struct {
	Catalog *services.CatalogService
	Logger  *zap.Logger
}

func NewCatalogController(catalog *services.CatalogService, logger *zap.Logger) *CatalogController {
	return &CatalogController{Catalog: catalog, Logger: logger}
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// GET /api/categories?all=true
func (ctrl *CatalogController) GetCategories(c *gin.Context) {
	list, err := ctrl.Catalog.ListCategories(c.Request.Context(), c.Query("all") != "true")
	if err != nil {
		respondError(c, ctrl.Logger, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, list)
}

// POST /api/categories
func (ctrl *CatalogController) CreateCategory(c *gin.Context) {
	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	cat := models.Category{Name: req.Name, SortOrder: req.SortOrder, Active: boolOr(req.Active, true)}
	if err := ctrl.Catalog.CreateCategory(c.Request.Context(), &cat); err != nil {
		respondError(c, ctrl.Logger, err)
		return
	}
	utils.JSONSuccess(c, http.StatusCreated, cat)
}

// GET /api/categories/:id/products?all=true
func (ctrl *CatalogController) GetCategoryProducts(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if _, err := ctrl.Catalog.GetCategory(c.Request.Context(), id); err != nil {
		respondError(c, ctrl.Logger, err)
		return
	}
	list, err := ctrl.Catalog.ListProducts(c.Request.Context(), id, c.Query("all") != "true")
	if err != nil {
		respondError(c, ctrl.Logger, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, list)
}

// POST /api/products
func (ctrl *CatalogController) CreateProduct(c *gin.Context) {
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	p := models.Product{
		CategoryID: req.CategoryID,
		Name:       req.Name,
		Unit:       req.Unit,
		Price:      req.Price,
		Available:  boolOr(req.Available, true),
	}
	if err := ctrl.Catalog.CreateProduct(c.Request.Context(), &p); err != nil {
		respondError(c, ctrl.Logger, err)
		return
	}
	utils.JSONSuccess(c, http.StatusCreated, p)
}

// PATCH /api/products/:id
func (ctrl *CatalogController) UpdateProduct(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var patch services.ProductPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondBadRequest(c, err)
		return
	}
	p, err := ctrl.Catalog.UpdateProduct(c.Request.Context(), id, patch)
	if err != nil {
		respondError(c, ctrl.Logger, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, p)
}

// GET /api/employees
func (ctrl *CatalogController) GetEmployees(c *gin.Context) {
	list, err := ctrl.Catalog.ListEmployees(c.Request.Context())
	if err != nil {
		respondError(c, ctrl.Logger, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, list)
}

// POST /api/employees
func (ctrl *CatalogController) CreateEmployee(c *gin.Context) {
	var req CreateEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	e := models.Employee{
		FullName:   req.FullName,
		Role:       req.Role,
		Phone:      req.Phone,
		ExternalID: req.ExternalID,
		Pin:        req.Pin,
		Active:     true,
	}
	if err := ctrl.Catalog.CreateEmployee(c.Request.Context(), &e); err != nil {
		respondError(c, ctrl.Logger, err)
		return
	}
	utils.JSONSuccess(c, http.StatusCreated, e)
}

// PATCH /api/employees/:id/active
func (ctrl *CatalogController) SetEmployeeActive(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req ActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	e, err := ctrl.Catalog.SetEmployeeActive(c.Request.Context(), id, *req.Active)
	if err != nil {
		respondError(c, ctrl.Logger, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, e)
}
