package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/HerbigniauxBenoit/spsync/internal/utils"
)

// Site is the subset of the Graph site resource the app needs.
type Site struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	WebURL      string `json:"webUrl"`
}

// Drive is the subset of the Graph drive resource the app needs.
type Drive struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	DriveType string `json:"driveType"`
	WebURL    string `json:"webUrl"`
}

type drivePage struct {
	Value    []Drive `json:"value"`
	NextLink string  `json:"@odata.nextLink"`
}

// ResolveSite looks up a site by hostname and server-relative path, e.g.
// ("contoso.sharepoint.com", "/sites/Engineering").
func (c *Client) ResolveSite(ctx context.Context, host, sitePath string) (*Site, error) {
	url := "/sites/" + host
	if sitePath != "" {
		url += ":" + sitePath
	}

	reqCtx := NewRequestContext("resolve-site", "", "")
	site, err := GetJSON[Site](ctx, c, reqCtx, url)
	if err != nil {
		if IsNotFound(err) {
			return nil, utils.NewAppError(utils.ErrCodeSiteNotFound,
				fmt.Sprintf("site %s%s not found", host, sitePath), err)
		}
		return nil, err
	}
	return &site, nil
}

// ResolveDrive finds the named document library on a site. The error for an
// unknown name lists the libraries that do exist, since a misspelled drive
// name is the most common setup mistake.
func (c *Client) ResolveDrive(ctx context.Context, siteID, driveName string) (*Drive, error) {
	reqCtx := NewRequestContext("resolve-drive", siteID, "")

	var available []string
	url := fmt.Sprintf("/sites/%s/drives", siteID)
	for url != "" {
		page, err := GetJSON[drivePage](ctx, c, reqCtx, url)
		if err != nil {
			return nil, err
		}
		for _, d := range page.Value {
			if strings.EqualFold(d.Name, driveName) {
				return &d, nil
			}
			available = append(available, d.Name)
		}
		url = page.NextLink
	}

	return nil, utils.NewAppError(utils.ErrCodeDriveNotFound,
		fmt.Sprintf("drive %q not found on site (available: %s)",
			driveName, strings.Join(available, ", ")), nil)
}
