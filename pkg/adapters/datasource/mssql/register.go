//go:build mssql || all_adapters

package mssql

import (
	"github.com/ekaya-inc/ekaya-pool/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.DatasourceAdapterRegistration{
		Info: datasource.DatasourceAdapterInfo{
			Type:        TypeName,
			DisplayName: "Microsoft SQL Server",
			Description: "Connect to SQL Server 2019+, Azure SQL Database",
			DefaultPort: DefaultPort(),
		},
		Connect: Connect,
	})
}
