package cli

import (
	"context"
	"time"

	"github.com/dmitrijs2005/lotkeeper/internal/client/models"
	"github.com/dmitrijs2005/lotkeeper/internal/client/remote"
)

const demoCompanyID = "demo-company"

// demoPhoto is a 1x1 PNG.
var demoPhoto = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0xf8, 0xcf, 0xc0, 0xf0,
	0x1f, 0x00, 0x05, 0x00, 0x01, 0xff, 0x89, 0x99, 0x3d, 0x1d, 0x00, 0x00,
	0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

// seedDemo fills the in-memory remotes with one company, an active and a
// completed sale, a few lots and a photo.
func seedDemo(ctx context.Context, ms *remote.MemoryStore, objs *remote.MemoryObjects) error {
	start := time.Now().UTC().AddDate(0, 0, 7)

	if err := ms.Seed(models.Companies.Remote, models.Company{
		ID: demoCompanyID, Name: "Hollis & Grant Auctioneers", Email: "office@hollisgrant.example",
	}); err != nil {
		return err
	}

	if err := ms.Seed(models.Sales.Remote,
		models.Sale{ID: "sale-spring", CompanyID: demoCompanyID, Name: "Spring Estate Sale", Status: models.SaleActive, Location: "Harrow Hall", StartDate: &start},
		models.Sale{ID: "sale-winter", CompanyID: demoCompanyID, Name: "Winter Collectors Auction", Status: models.SaleCompleted},
	); err != nil {
		return err
	}

	if err := ms.Seed(models.Lots.Remote,
		models.Lot{ID: "lot-clock", SaleID: "sale-spring", LotNumber: 1, Title: "Longcase clock, oak", EstimateLow: 800, EstimateHigh: 1200},
		models.Lot{ID: "lot-vase", SaleID: "sale-spring", LotNumber: 2, Title: "Pair of famille rose vases", EstimateLow: 300, EstimateHigh: 500},
		models.Lot{ID: "lot-rug", SaleID: "sale-winter", LotNumber: 1, Title: "Persian rug"},
	); err != nil {
		return err
	}

	if err := ms.Seed(models.Categories.Remote,
		models.Category{ID: "cat-furniture", CompanyID: demoCompanyID, Name: "Furniture"},
		models.Category{ID: "cat-ceramics", CompanyID: demoCompanyID, Name: "Ceramics"},
	); err != nil {
		return err
	}

	if err := ms.Seed(models.Contacts.Remote,
		models.Contact{ID: "contact-ann", CompanyID: demoCompanyID, Name: "Ann Hollis", Role: "valuer"},
	); err != nil {
		return err
	}

	photo := models.Photo{ID: "photo-clock", LotID: "lot-clock", FileName: "front.png", IsPrimary: true}
	photo.FilePath = models.PhotoObjectKey(photo.LotID, photo.FileName)
	if err := ms.Seed(models.Photos.Remote, photo); err != nil {
		return err
	}
	return objs.Put(ctx, photo.FilePath, demoPhoto, "image/png")
}
