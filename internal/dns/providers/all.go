// Package providers imports all DNS provider packages to trigger their init() registration.
package providers

import (
	_ "github.com/yuriy-kovalchuk/yk-cdn-dns/internal/dns/aliyun"
	_ "github.com/yuriy-kovalchuk/yk-cdn-dns/internal/dns/cloudflare"
	_ "github.com/yuriy-kovalchuk/yk-cdn-dns/internal/dns/dnspod"
	_ "github.com/yuriy-kovalchuk/yk-cdn-dns/internal/dns/huawei"
)
