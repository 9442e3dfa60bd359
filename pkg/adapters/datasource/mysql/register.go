package mysql

import (
	"github.com/ekaya-inc/ekaya-pool/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.DatasourceAdapterRegistration{
		Info: datasource.DatasourceAdapterInfo{
			Type:        TypeName,
			DisplayName: "MySQL",
			Description: "Connect to MySQL 5.7+, MariaDB 10.3+",
			DefaultPort: DefaultPort(),
		},
		Connect: Connect,
	})
}
