package collector

var controlFilesProbe = Probe{
	Name:   "control_files",
	Help:   "Control files with their status and size.",
	Metric: "oracledb_control_files_info",
	Query: `SELECT name,
       DECODE(c.status, NULL, 'VALID', '' || c.status || '') status,
       '' || TO_CHAR(block_size * file_size_blks, '999,999,999,999') || '' file_size
  FROM v$controlfile c
 ORDER BY c.name`,
	Labels:      []string{"name", "status", "file_size"},
	RowToLabels: trimmed(columns(3)),
}

var onlineRedoLogsProbe = Probe{
	Name:   "online_redo_logs",
	Help:   "Online redo log members per instance and group.",
	Metric: "oracledb_online_redo_logs_info",
	Query: `SELECT '' || i.instance_name || '' instance_name_print,
       '' || i.thread# || '' thread_number_print,
       f.group# groupno,
       '' || f.member || '' member,
       f.type redo_file_type,
       DECODE(l.status, 'CURRENT', '' || l.status || '', '' || l.status || '') log_status,
       '' || l.archived || '' archived,
       l.bytes bytes
  FROM gv$logfile f, gv$log l, gv$instance i
 WHERE f.group# = l.group#
   AND l.thread# = i.thread#
   AND i.inst_id = f.inst_id
   AND f.inst_id = l.inst_id
 ORDER BY i.instance_name, f.group#, f.member`,
	Labels:      []string{"instance_name_print", "thread_number_print", "groupno", "member", "redo_file_type", "log_status", "archived", "bytes"},
	RowToLabels: columns(8),
}

// redoLogSwitchesProbe exposes the number of log switches per hour bucket
// as the sample value.
var redoLogSwitchesProbe = Probe{
	Name:   "redo_log_switches",
	Help:   "Redo log switches per hour from v$log_history.",
	Metric: "oracledb_redo_log_switches_info",
	Query: `SELECT '' || SUBSTR(TO_CHAR(first_time, 'yyyy-MM-DD HH:MI:SS'), 1, 7) || '' "DATE",
       count(*) TOTAL
  FROM v$log_history
 GROUP BY SUBSTR(TO_CHAR(first_time, 'yyyy-MM-DD HH:MI:SS'), 1, 7)
 ORDER BY SUBSTR(TO_CHAR(first_time, 'yyyy-MM-DD HH:MI:SS'), 1, 7)`,
	Labels:      []string{"date"},
	RowToLabels: columns(1),
	RowToValue:  column(1),
}

var tablespaceStatusProbe = Probe{
	Name:   "tablespace_status",
	Help:   "Tablespace size, usage and free space in megabytes.",
	Metric: "oracledb_tablespace_status_info",
	Query: `SELECT UPPER(F.TABLESPACE_NAME) "tablespace_name",
       D.TOT_GROOTTE_MB "tablespace_size(M)",
       D.TOT_GROOTTE_MB - F.TOTAL_BYTES "tablespace_used(M)",
       F.TOTAL_BYTES "tablespace_free(M)",
       TO_CHAR(ROUND((D.TOT_GROOTTE_MB - F.TOTAL_BYTES) / D.TOT_GROOTTE_MB * 100, 2), '990.99') "tablespace_used%"
  FROM (SELECT TABLESPACE_NAME,
               ROUND(SUM(BYTES) / 1024 / 1024) TOTAL_BYTES,
               ROUND(MAX(BYTES) / (1024 * 1024), 2) MAX_BYTES
          FROM SYS.DBA_FREE_SPACE
         GROUP BY TABLESPACE_NAME) F,
       (SELECT DD.TABLESPACE_NAME,
               ROUND(SUM(BYTES) / 1024 / 1024) TOT_GROOTTE_MB
          FROM SYS.DBA_DATA_FILES DD
         GROUP BY DD.TABLESPACE_NAME) D
 WHERE D.TABLESPACE_NAME = F.TABLESPACE_NAME
 ORDER BY 2 DESC`,
	Labels:      []string{"tablespace_name", "tablespace_size", "tablespace_used", "tablespace_free", "tablespace_used_ratio"},
	RowToLabels: trimmed(columns(5)),
}
