package collector

var overviewLabels = []string{
	"name", "db_unique_name", "dbid", "open_mode", "created",
	"platform_name", "database_role", "controlfile_type",
	"current_scn", "log_mode", "FORCE_LOGGING", "flashback_on",
}

var versionProbe = Probe{
	Name:        "version",
	Help:        "Oracle banner lines from v$version.",
	Metric:      "oracledb_version_info",
	Query:       `SELECT banner FROM v$version`,
	Labels:      []string{"version"},
	RowToLabels: columns(1),
}

var databaseRegistryProbe = Probe{
	Name:   "database_registry",
	Help:   "Components loaded into the database, from dba_registry.",
	Metric: "oracledb_database_registry_info",
	Query: `SELECT comp_id, comp_name, version, status, modified, control,
       schema, procedure
  FROM dba_registry
 ORDER BY comp_name`,
	Labels:      []string{"comp_id", "comp_name", "version", "status", "modified", "control", "schema", "procedure"},
	RowToLabels: columns(8),
}

var highWaterMarkStatisticsProbe = Probe{
	Name:   "high_water_mark_statistics",
	Help:   "Database high water mark statistics.",
	Metric: "oracledb_dba_high_water_mark_statistics_info",
	Query: `SELECT name statistic_name, highwater, last_value, description
  FROM dba_high_water_mark_statistics
 ORDER BY name`,
	Labels:      []string{"statistic_name", "highwater", "last_value", "description"},
	RowToLabels: columns(4),
}

const databaseOverviewQuery = `SELECT name, db_unique_name, dbid, open_mode, created,
       platform_name, database_role, controlfile_type, current_scn,
       log_mode, force_logging, flashback_on
  FROM v$database`

var instanceOverviewProbe = Probe{
	Name:        "instance_overview",
	Help:        "Instance overview from v$database.",
	Metric:      "oracledb_instance_overview_info",
	Query:       databaseOverviewQuery,
	Labels:      overviewLabels,
	RowToLabels: columns(len(overviewLabels)),
}

var databaseOverviewProbe = Probe{
	Name:        "database_overview",
	Help:        "Database overview from v$database.",
	Metric:      "oracledb_database_overview_info",
	Query:       databaseOverviewQuery,
	Labels:      overviewLabels,
	RowToLabels: columns(len(overviewLabels)),
}

var initializationParametersProbe = Probe{
	Name:   "initialization_parameters",
	Help:   "Whether the instance was started from an SPFILE.",
	Metric: "oracledb_initialization_parameters_info",
	Query: `SELECT 'This database ' ||
       DECODE((1 - SIGN(1 - SIGN(count(*) - 0))), 1, 'IS', 'IS NOT') ||
       ' using an SPFILE.' spfile
  FROM v$spparameter
 WHERE value IS NOT NULL`,
	Labels:      []string{"spfile"},
	RowToLabels: columns(1),
}
